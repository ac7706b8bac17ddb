package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for payments.
type RepositoryPort interface {
	Create(ctx context.Context, year int, input CreateInput) (*Payment, error)
	GetByID(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]Payment, int, error)
}

// Service handles payment business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create records a payment against an invoice. Status defaults to
// COMPLETED and the date to now; the repository fills the client email
// from the invoice when blank and resyncs the invoice status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Payment, error) {
	if input.Status == "" {
		input.Status = StatusCompleted
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", input.Status, httpx.ErrValidation)
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("method %q: %w", input.Method, httpx.ErrValidation)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", httpx.ErrValidation)
	}
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}
	return s.repo.Create(ctx, s.now().Year(), input)
}

// GetByID returns a single payment.
func (s *Service) GetByID(ctx context.Context, id string) (*Payment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update and returns the fresh row.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Payment, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("provide at least one field to update: %w", httpx.ErrValidation)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", *patch.Status, httpx.ErrValidation)
	}
	if patch.Method != nil && !patch.Method.Valid() {
		return nil, fmt.Errorf("method %q: %w", *patch.Method, httpx.ErrValidation)
	}
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a payment.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List returns a page of payments plus pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]Payment, shared.Pagination, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("status %q: %w", filters.Status, httpx.ErrValidation)
	}
	if filters.Method != "" && !filters.Method.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("method %q: %w", filters.Method, httpx.ErrValidation)
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, total), nil
}
