package health

import (
	"net/http"
	"time"

	"github.com/pastejet/pastejet/internal/infrastructure/json"
)

type Handler struct {
	started time.Time
}

func NewHandler() *Handler {
	return &Handler{
		started: time.Now(),
	}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	data := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	json.Write(w, http.StatusOK, data)
}
