package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/users"
)

const loginRateLimit = 10
const loginRateWindow = time.Minute

// LoginService defines the business contract the handler depends on.
type LoginService interface {
	Login(ctx context.Context, email, password string) (string, *users.User, error)
}

// Handler serves the login endpoint.
type Handler struct {
	logger   *slog.Logger
	service  LoginService
	validate *validator.Validate
}

// NewHandler builds the auth HTTP handler.
func NewHandler(logger *slog.Logger, service LoginService, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the public auth endpoints, rate-limited by client
// IP so credential stuffing stays slow.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.LimitByIP(loginRateLimit, loginRateWindow))
		gr.Post("/auth/login", h.handleLogin)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("email", req.Email))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}
