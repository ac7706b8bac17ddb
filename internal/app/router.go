package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/everpower/backoffice/internal/auth"
	"github.com/everpower/backoffice/internal/invoices"
	"github.com/everpower/backoffice/internal/observability"
	"github.com/everpower/backoffice/internal/payments"
	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/reports"
	"github.com/everpower/backoffice/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthHandler     *auth.Handler
	AuthMiddleware  *auth.Middleware
	InvoicesHandler *invoices.Handler
	PaymentsHandler *payments.Handler
	UsersHandler    *users.Handler
	ReportsHandler  *reports.Handler
	Metrics         *observability.Metrics
	StartedAt       time.Time
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"uptime": int64(time.Since(startedAt).Seconds()),
		})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountRoutes(r)
	params.UsersHandler.MountPublicRoutes(r)

	r.Group(func(pr chi.Router) {
		pr.Use(params.AuthMiddleware.RequireAuth)
		params.InvoicesHandler.MountRoutes(pr)
		params.PaymentsHandler.MountRoutes(pr)
		params.ReportsHandler.MountRoutes(pr)
		params.UsersHandler.MountRoutes(pr)
	})

	return r
}
