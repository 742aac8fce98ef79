package handler

import (
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
)

func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	data, hdr, err := readPart(w, r, "file", entity.MaxUploadSize, errFileTooLarge)
	if err != nil {
		json.WriteError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.files.Upload(r.Context(), user.ID, &entity.UploadRequest{
		ActivityID:  r.FormValue("activityId"),
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, res)
}
