package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/gateways/web/middleware"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"
	filesUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/usecase"
	notesUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/usecase"
	tripsUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/usecase"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

var errUnauthorized = errors.New("unauthorized")

type Deps struct {
	Trips tripsUsecase.Usecase
	Notes notesUsecase.Usecase
	Files filesUsecase.Usecase
	Asr   pb.AsrServiceClient
	Log   *slog.Logger
}

type Handler struct {
	trips tripsUsecase.Usecase
	notes notesUsecase.Usecase
	files filesUsecase.Usecase
	asr   pb.AsrServiceClient
	log   *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		trips: deps.Trips,
		notes: deps.Notes,
		files: deps.Files,
		asr:   deps.Asr,
		log:   logger.OrDefault(deps.Log),
	}
}

// RegisterRoutes mounts the API under /api. auth guards every route except
// health; limit throttles the endpoints that call the language model.
func (h *Handler) RegisterRoutes(r chi.Router, auth, limit func(http.Handler) http.Handler) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.HealthCheck)

		api.Group(func(r chi.Router) {
			r.Use(auth)

			r.Route("/trips", func(r chi.Router) {
				r.Post("/progressive-save", h.ProgressiveSave)
				r.Patch("/{tripId}/finalize", h.FinalizeTrip)
				r.Get("/drafts", h.ListDrafts)
				r.Delete("/drafts/{tripId}", h.DeleteDraft)
				r.Get("/continue/{accessCode}", h.ContinueTrip)
			})

			r.Route("/activities/{activityId}", func(r chi.Router) {
				r.Get("/notes", h.ListNotes)
				r.Post("/notes", h.SaveNote)
				r.Delete("/notes", h.DeleteNote)
				r.Get("/notes/{noteId}/history", h.NoteHistory)

				r.With(limit).Post("/transcribe", h.Transcribe)
				r.Get("/transcribe", h.ListTranscriptions)
			})

			r.With(limit).Post("/ai/summarize-transcript", h.SummarizeTranscript)
			r.Post("/files/upload", h.UploadFile)
		})
	})
}

// HealthCheck reports the gateway as up and, separately, whether the speech
// service answers.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	asrUp := false
	if h.asr != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		res, err := h.asr.HealthCheck(ctx, &emptypb.Empty{})
		asrUp = err == nil && res.GetValue()
	}

	json.WriteJSON(w, http.StatusOK, map[string]bool{"status": true, "asr": asrUp})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (middleware.User, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok || u.ID == "" {
		json.WriteError(w, http.StatusUnauthorized, errUnauthorized)
		return middleware.User{}, false
	}
	return u, true
}

// writeError maps usecase and gRPC errors onto HTTP statuses. Internal
// failures are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorErr(r.Context(), "request failed", err,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))
	}

	switch code {
	case http.StatusInternalServerError:
		json.WriteError(w, code, errors.New("internal server error"))
	case http.StatusServiceUnavailable:
		json.WriteError(w, code, errors.New("service temporarily unavailable"))
	default:
		if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
			json.WriteError(w, code, errors.New(s.Message()))
			return
		}
		json.WriteError(w, code, err)
	}
}

func statusCode(err error) int {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, json.ErrMissingBody),
		errors.Is(err, tripsUsecase.ErrInvalidInput),
		errors.Is(err, notesUsecase.ErrInvalidInput),
		errors.Is(err, filesUsecase.ErrInvalidInput),
		errors.Is(err, filesUsecase.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, tripsUsecase.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, tripsUsecase.ErrNotFound),
		errors.Is(err, notesUsecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tripsUsecase.ErrConflict):
		return http.StatusConflict
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument:
			return http.StatusBadRequest
		case codes.NotFound:
			return http.StatusNotFound
		case codes.Unavailable:
			return http.StatusServiceUnavailable
		}
	}

	return http.StatusInternalServerError
}
