package reports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/everpower/backoffice/internal/platform/httpx"
)

// OverviewService defines the business contract the handler depends on.
type OverviewService interface {
	Overview(ctx context.Context, month string) (*Overview, error)
}

// Handler serves the report endpoints.
type Handler struct {
	logger  *slog.Logger
	service OverviewService
}

// NewHandler builds the reports HTTP handler.
func NewHandler(logger *slog.Logger, service OverviewService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/reports/overview", h.handleOverview)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.logger.Error("build overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}
