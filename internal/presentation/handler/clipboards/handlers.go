package clipboards

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/clipboard"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
)

type Handler struct {
	clipboards *clipboard.Service
}

func NewHandler(clipboards *clipboard.Service) *Handler {
	return &Handler{
		clipboards: clipboards,
	}
}

func toResponse(c *domain.Clipboard) clipboardResponse {
	return clipboardResponse{
		Code:       c.Code,
		Content:    c.Content,
		DeviceName: c.DeviceName,
		CreatedBy:  c.CreatedBy,
		CreatedAt:  c.CreatedDate,
	}
}

func (h *Handler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	identity, _ := auth.FromContext(r.Context())

	shared, err := h.clipboards.Share(r.Context(), req.Content, req.DeviceName, identity.UserID)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	json.Write(w, http.StatusCreated, toResponse(shared))
}

func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.clipboards.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, domain.ErrClipboardNotFound) {
			json.WriteError(w, http.StatusNotFound, err, err.Error())
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, toResponse(c))
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	history, err := h.clipboards.History(r.Context(), identity.UserID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	resp := historyResponse{Clipboards: make([]clipboardResponse, 0, len(history))}
	for _, c := range history {
		resp.Clipboards = append(resp.Clipboards, toResponse(c))
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	err := h.clipboards.Delete(r.Context(), chi.URLParam(r, "code"), identity.UserID)
	switch {
	case errors.Is(err, domain.ErrClipboardNotFound):
		json.WriteError(w, http.StatusNotFound, err, err.Error())
		return
	case errors.Is(err, domain.ErrNotOwner):
		json.WriteError(w, http.StatusForbidden, err, err.Error())
		return
	case err != nil:
		json.WriteInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
