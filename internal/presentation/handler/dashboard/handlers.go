package dashboard

import (
	"errors"
	"net/http"

	"github.com/pastejet/pastejet/internal/auth"
	dashsvc "github.com/pastejet/pastejet/internal/dashboard"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
)

type Handler struct {
	dashboard *dashsvc.Service
}

func NewHandler(dashboard *dashsvc.Service) *Handler {
	return &Handler{
		dashboard: dashboard,
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
	}
	return identity, ok
}

func toProfileResponse(p *domain.UserProfile) profileResponse {
	return profileResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	profile, err := h.dashboard.Profile(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			json.WriteError(w, http.StatusNotFound, err, err.Error())
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	profile, err := h.dashboard.UpsertProfile(r.Context(), identity.UserID, req.DisplayName, req.PhotoURL)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stats, err := h.dashboard.Stats(r.Context(), identity.UserID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, statsResponse{
		TotalPastes:     stats.TotalPastes,
		TotalViews:      stats.TotalViews,
		ProtectedPastes: stats.ProtectedPastes,
	})
}

// ListPastesHandler serves the dashboard's paste table. The filter query
// parameter accepts all, public, or protected.
func (h *Handler) ListPastesHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = dashsvc.FilterAll
	}

	pastes, err := h.dashboard.ListPastes(r.Context(), identity.UserID, filter)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	resp := pasteListResponse{Pastes: make([]pasteSummary, 0, len(pastes))}
	for _, p := range pastes {
		resp.Pastes = append(resp.Pastes, pasteSummary{
			ID:         p.ID,
			Title:      p.Title,
			Language:   p.Language,
			Visibility: p.Visibility,
			Protected:  p.Protected(),
			ExpiresAt:  p.ExpiresAt,
			CreatedAt:  p.CreatedAt,
			Views:      p.Views,
		})
	}

	json.Write(w, http.StatusOK, resp)
}
