package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

// InvoiceService defines the business contract the handler depends on.
type InvoiceService interface {
	Create(ctx context.Context, input CreateInput) (*Invoice, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, id string, patch Patch) (*Invoice, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]ListRow, shared.Pagination, error)
}

// Handler serves the invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  InvoiceService
	validate *validator.Validate
}

// NewHandler builds the invoice HTTP handler.
func NewHandler(logger *slog.Logger, service InvoiceService, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the invoice endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/invoices", func(ir chi.Router) {
		ir.Get("/", h.handleList)
		ir.Post("/", h.handleCreate)
		ir.Get("/{id}", h.handleGet)
		ir.Patch("/{id}", h.handleUpdate)
		ir.Delete("/{id}", h.handleDelete)
	})
}

type createRequest struct {
	ClientEmail string          `json:"clientEmail" validate:"required,email"`
	ClientPhone string          `json:"clientPhone" validate:"required"`
	Amount      float64         `json:"amount" validate:"required,gt=0"`
	Status      string          `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	Date        string          `json:"date" validate:"required"`
	DueDate     string          `json:"dueDate" validate:"required"`
	Description *string         `json:"description"`
	CustomerID  *string         `json:"customerId"`
	Billing     *BillingOptions `json:"billing"`
}

type updateRequest struct {
	ClientEmail *string  `json:"clientEmail" validate:"omitempty,email"`
	ClientPhone *string  `json:"clientPhone" validate:"omitempty,min=1"`
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Status      *string  `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	Date        *string  `json:"date"`
	DueDate     *string  `json:"dueDate"`
	Description *string  `json:"description"`
	CustomerID  *string  `json:"customerId"`
}

type listResponse struct {
	Data       []ListRow         `json:"data"`
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
	date, err := parseDate(req.Date, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dueDate, err := parseDate(req.DueDate, "dueDate")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := CreateInput{
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Amount:      req.Amount,
		Status:      Status(req.Status),
		Date:        date,
		DueDate:     dueDate,
		Description: req.Description,
		CustomerID:  req.CustomerID,
		Billing:     req.Billing,
	}
	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	patch := Patch{
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Amount:      req.Amount,
		Description: req.Description,
		CustomerID:  req.CustomerID,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		patch.Status = &status
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date, "date")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		patch.Date = &date
	}
	if req.DueDate != nil {
		dueDate, err := parseDate(*req.DueDate, "dueDate")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		patch.DueDate = &dueDate
	}

	inv, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "invoice deleted"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Query:  q.Get("q"),
		Status: Status(q.Get("status")),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, &httpx.FieldErrors{Fields: []httpx.FieldError{{Path: "year", Message: "must be an integer"}}})
			return
		}
		filters.Year = year
	}

	rows, pagination, err := h.service.List(r.Context(), filters, shared.ParsePage(q))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: rows, Pagination: pagination})
}

// parseDate accepts calendar dates with or without a time component.
func parseDate(raw, path string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &httpx.FieldErrors{Fields: []httpx.FieldError{{Path: path, Message: fmt.Sprintf("%q is not a valid date", raw)}}}
}
