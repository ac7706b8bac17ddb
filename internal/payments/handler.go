package payments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

// PaymentService defines the business contract the handler depends on.
type PaymentService interface {
	Create(ctx context.Context, input CreateInput) (*Payment, error)
	GetByID(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, id string, patch Patch) (*Payment, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]Payment, shared.Pagination, error)
}

// Handler serves the payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  PaymentService
	validate *validator.Validate
}

// NewHandler builds the payment HTTP handler.
func NewHandler(logger *slog.Logger, service PaymentService, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the payment endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/payments", func(pr chi.Router) {
		pr.Get("/", h.handleList)
		pr.Post("/", h.handleCreate)
		pr.Get("/{id}", h.handleGet)
		pr.Patch("/{id}", h.handleUpdate)
		pr.Delete("/{id}", h.handleDelete)
	})
}

type createRequest struct {
	InvoiceID   string  `json:"invoiceId" validate:"required"`
	ClientEmail string  `json:"clientEmail" validate:"omitempty,email"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Method      string  `json:"method" validate:"required,oneof=CASH CARD BANK_TRANSFER ONLINE CHEQUE OTHER"`
	Status      string  `json:"status" validate:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED"`
	Date        string  `json:"date"`
	Reference   *string `json:"reference"`
}

type updateRequest struct {
	ClientEmail *string  `json:"clientEmail" validate:"omitempty,email"`
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Method      *string  `json:"method" validate:"omitempty,oneof=CASH CARD BANK_TRANSFER ONLINE CHEQUE OTHER"`
	Status      *string  `json:"status" validate:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED"`
	Date        *string  `json:"date"`
	Reference   *string  `json:"reference"`
}

type listResponse struct {
	Data       []Payment         `json:"data"`
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

	input := CreateInput{
		InvoiceID:   req.InvoiceID,
		ClientEmail: req.ClientEmail,
		Amount:      req.Amount,
		Method:      Method(req.Method),
		Status:      Status(req.Status),
		Reference:   req.Reference,
	}
	if req.Date != "" {
		date, err := parseDate(req.Date, "date")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Date = date
	}

	payment, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
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
		Amount:      req.Amount,
		Reference:   req.Reference,
	}
	if req.Method != nil {
		method := Method(*req.Method)
		patch.Method = &method
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

	payment, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "payment deleted"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Query:     q.Get("q"),
		InvoiceID: q.Get("invoiceId"),
		Status:    Status(q.Get("status")),
		Method:    Method(q.Get("method")),
	}
	if raw := q.Get("from"); raw != "" {
		from, err := parseDate(raw, "from")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filters.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := parseDate(raw, "to")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filters.To = &to
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
