package pastes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
	"github.com/pastejet/pastejet/internal/paste"
)

type Handler struct {
	pastes *paste.Service
}

func NewHandler(pastes *paste.Service) *Handler {
	return &Handler{
		pastes: pastes,
	}
}

func toResponse(p *domain.Paste) pasteResponse {
	return pasteResponse{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Language:   p.Language,
		Visibility: p.Visibility,
		Protected:  p.Protected(),
		CustomURL:  p.CustomURL,
		ExpiresAt:  p.ExpiresAt,
		CreatedBy:  p.CreatedBy,
		CreatedAt:  p.CreatedAt,
		Views:      p.Views,
	}
}

func (h *Handler) CreatePasteHandler(w http.ResponseWriter, r *http.Request) {
	var req createPasteRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	identity, _ := auth.FromContext(r.Context())

	created, err := h.pastes.Create(r.Context(), paste.CreateInput{
		Title:      req.Title,
		Content:    req.Content,
		Language:   req.Language,
		Visibility: req.Visibility,
		Password:   req.Password,
		CustomURL:  req.CustomURL,
		Expiry:     req.Expiry,
		CreatedBy:  identity.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAnonymousLimited):
			json.WriteError(w, http.StatusForbidden, err, err.Error())
		case errors.Is(err, domain.ErrSlugTaken):
			json.WriteError(w, http.StatusConflict, err, err.Error())
		case errors.Is(err, domain.ErrInvalidExpiry):
			json.WriteValidationError(w, err)
		default:
			json.WriteValidationError(w, err)
		}
		return
	}

	json.Write(w, http.StatusCreated, toResponse(created))
}

// GetPasteHandler resolves by ID or custom URL. Password-protected pastes
// return 401 with a locked partial body until ?password= matches.
func (h *Handler) GetPasteHandler(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "pasteId")

	p, err := h.pastes.Get(r.Context(), idOrSlug, r.URL.Query().Get("password"))
	switch {
	case errors.Is(err, domain.ErrPasteLocked):
		json.Write(w, http.StatusUnauthorized, toResponse(p))
		return
	case errors.Is(err, domain.ErrPasteNotFound), errors.Is(err, domain.ErrPasteExpired):
		json.WriteError(w, http.StatusNotFound, err, err.Error())
		return
	case err != nil:
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, toResponse(p))
}

func (h *Handler) ListPastesHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	pastes, err := h.pastes.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	resp := pasteListResponse{Pastes: make([]pasteResponse, 0, len(pastes))}
	for _, p := range pastes {
		resp.Pastes = append(resp.Pastes, toResponse(p))
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) DeletePasteHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	err := h.pastes.Delete(r.Context(), chi.URLParam(r, "pasteId"), identity.UserID)
	switch {
	case errors.Is(err, domain.ErrPasteNotFound):
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
