package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/consts"
	filesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const multipartMemory = 8 << 20

var summarizeSchema = schema.MustCompile("summarize-transcript", `{
  "type": "object",
  "required": ["transcript"],
  "properties": {
    "transcript": {"type": "string", "minLength": 1},
    "context": {
      "type": ["object", "null"],
      "properties": {
        "activityTitle": {"type": "string"},
        "meetingDate": {"type": "string"},
        "companies": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`)

var (
	errAudioTooLarge = fmt.Errorf("audio file too large, maximum size is %dMB", consts.MaxAudioSize>>20)
	errFileTooLarge  = fmt.Errorf("file too large, maximum size is %dMB", filesEntity.MaxUploadSize>>20)
)

// readPart reads the named multipart file, refusing anything above limit.
func readPart(w http.ResponseWriter, r *http.Request, field string, limit int64, tooLarge error) ([]byte, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, tooLarge
		}
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("no %s provided", field)
	}
	defer file.Close()

	if hdr.Size > limit {
		return nil, nil, tooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	if int64(len(data)) > limit {
		return nil, nil, tooLarge
	}

	return data, hdr, nil
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	activityID := chi.URLParam(r, "activityId")

	data, hdr, err := readPart(w, r, "audio", consts.MaxAudioSize, errAudioTooLarge)
	if err != nil {
		json.WriteError(w, http.StatusBadRequest, err)
		return
	}

	ctx := pb.AudioMetadata(r.Context(), activityID, user.ID, hdr.Header.Get("Content-Type"), hdr.Filename)
	out, err := h.asr.TranscribeAudio(ctx, wrapperspb.Bytes(data))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var t pb.Transcription
	if err := pb.FromStruct(out, &t); err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "audio transcribed",
		slog.String("activity_id", activityID),
		slog.Int("audio_bytes", len(data)),
		slog.Int("transcript_chars", len(t.Text)))
	json.WriteJSON(w, http.StatusOK, map[string]any{
		"transcript":    t.Text,
		"transcription": t.Text,
		"success":       true,
		"id":            t.ID,
	})
}

func (h *Handler) ListTranscriptions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}

	out, err := h.asr.ListTranscriptions(r.Context(), wrapperspb.String(chi.URLParam(r, "activityId")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var list pb.TranscriptionList
	if err := pb.FromStruct(out, &list); err != nil {
		h.writeError(w, r, err)
		return
	}
	if list.Transcriptions == nil {
		list.Transcriptions = []pb.Transcription{}
	}

	json.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) SummarizeTranscript(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}

	req := &pb.SummarizeRequest{}
	if err := json.ParseValidatedJSON(r, summarizeSchema, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in, err := pb.ToStruct(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.asr.SummarizeTranscript(r.Context(), in)
	if status.Code(err) == codes.Unavailable {
		json.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "AI summarization not configured",
			"summary": "AI summarization is currently unavailable. Please contact your administrator.",
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var res pb.SummarizeResult
	if err := pb.FromStruct(out, &res); err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}
