package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

const resetRateLimit = 5
const resetRateWindow = time.Minute

// UserService defines the business contract the handler depends on.
type UserService interface {
	Create(ctx context.Context, input CreateInput) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Update(ctx context.Context, id int64, patch Patch) (*User, error)
	SetPassword(ctx context.Context, id int64, password string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]User, shared.Pagination, error)
	ResetPassword(ctx context.Context, email string) error
}

// RouteGuards are the authorization middlewares applied per route. The
// auth package supplies them; keeping them as plain middleware values
// avoids a dependency loop with login's user lookup.
type RouteGuards struct {
	Admin       func(http.Handler) http.Handler
	SelfOrAdmin func(http.Handler) http.Handler
}

// Handler serves the user endpoints.
type Handler struct {
	logger   *slog.Logger
	service  UserService
	validate *validator.Validate
	guards   RouteGuards
}

// NewHandler builds the user HTTP handler.
func NewHandler(logger *slog.Logger, service UserService, validate *validator.Validate, guards RouteGuards) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, guards: guards}
}

// MountRoutes registers the authenticated user endpoints. List, create and
// delete are admin-only; reads and profile updates allow the account owner.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/users", func(ur chi.Router) {
		ur.Group(func(ar chi.Router) {
			ar.Use(h.guards.Admin)
			ar.Get("/", h.handleList)
			ar.Post("/", h.handleCreate)
			ar.Delete("/{id}", h.handleDelete)
		})
		ur.Group(func(sr chi.Router) {
			sr.Use(h.guards.SelfOrAdmin)
			sr.Get("/{id}", h.handleGet)
			sr.Patch("/{id}", h.handleUpdate)
			sr.Patch("/{id}/password", h.handleSetPassword)
		})
	})
}

// MountPublicRoutes registers the unauthenticated reset endpoint,
// rate-limited by client IP.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.LimitByIP(resetRateLimit, resetRateWindow))
		gr.Post("/users/reset-password", h.handleResetPassword)
	})
}

type createRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin accountant"`
	Password string `json:"password" validate:"required,min=8"`
}

type updateRequest struct {
	Email *string `json:"email" validate:"omitempty,email"`
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Role  *string `json:"role" validate:"omitempty,oneof=admin accountant"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type listResponse struct {
	Data       []User            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Create(r.Context(), CreateInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     Role(req.Role),
		Password: req.Password,
	})
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	patch := Patch{Email: req.Email, Name: req.Name}
	if req.Role != nil {
		role := Role(*req.Role)
		patch.Role = &role
	}
	user, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SetPassword(r.Context(), id, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Query: q.Get("q"), Role: Role(q.Get("role"))}

	rows, pagination, err := h.service.List(r.Context(), filters, shared.ParsePage(q))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: rows, Pagination: pagination})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Email); err != nil {
		// Internal failures still hide account existence.
		h.logger.Error("reset password", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": ResetMessage})
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, &httpx.FieldErrors{Fields: []httpx.FieldError{{Path: "id", Message: "must be an integer"}}}
	}
	return id, nil
}
