package handler

import (
	"log/slog"
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) ProgressiveSave(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	req := &entity.ProgressiveSaveRequest{}
	if err := json.ParseValidatedJSON(r, entity.ProgressiveSaveSchema, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.trips.ProgressiveSave(r.Context(), user.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.Debug(r.Context(), "progress saved",
		slog.String("trip_id", res.TripID),
		slog.Int("step", req.CurrentStep),
		slog.Bool("created", res.Created))
	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) FinalizeTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	res, err := h.trips.Finalize(r.Context(), user.ID, chi.URLParam(r, "tripId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	res, err := h.trips.ListDrafts(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	if err := h.trips.DeleteDraft(r.Context(), user.ID, chi.URLParam(r, "tripId")); err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) ContinueTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	res, err := h.trips.Resume(r.Context(), user.ID, chi.URLParam(r, "accessCode"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}
