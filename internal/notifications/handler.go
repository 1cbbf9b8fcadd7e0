package notifications

import (
	"net/http"

	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	repo Repository
}

// NewHandler creates a new notifications handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterAdminRoutes registers notification routes (require admin).
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/notifications/stats", h.GetQueueStats)
}

// GetQueueStats handles GET /notifications/stats.
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetQueueStats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	RecordQueueStats(stats)
	httputil.Success(w, http.StatusOK, stats)
}
