package handler

import (
	"errors"
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	res, err := h.notes.List(r.Context(), user.ID, chi.URLParam(r, "activityId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	req := &entity.SaveNoteRequest{}
	if err := json.ParseValidatedJSON(r, entity.SaveNoteSchema, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	note, err := h.notes.Save(r.Context(), user.ID, user.Name, chi.URLParam(r, "activityId"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, note)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	noteID := r.URL.Query().Get("note_id")
	if noteID == "" {
		json.WriteError(w, http.StatusBadRequest, errors.New("note_id is required"))
		return
	}

	if err := h.notes.Delete(r.Context(), user.ID, noteID); err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) NoteHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	res, err := h.notes.History(r.Context(), user.ID, chi.URLParam(r, "noteId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}
