package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	Create(ctx context.Context, year int, input CreateInput, sync BillingSync) (*Invoice, error)
	RecordBillingResult(ctx context.Context, id string, result *MirrorResult) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]ListRow, int, error)
}

// MirrorRequest is everything the external billing provider needs to mirror
// one invoice.
type MirrorRequest struct {
	InvoiceID        string
	ClientEmail      string
	ClientPhone      string
	Amount           float64
	Description      *string
	Date             time.Time
	DueDate          time.Time
	Items            []LineItem
	DaysUntilDue     *int64
	FinalizeAndEmail bool
}

// BillingMirror mirrors an invoice to the external billing provider. Nil
// when no provider credential is configured.
type BillingMirror interface {
	Mirror(ctx context.Context, req MirrorRequest) (*MirrorResult, error)
}

// Notice is the payload for the best-effort client notification.
type Notice struct {
	To        string
	InvoiceID string
	Amount    float64
	PayURL    string
}

// Notifier delivers the invoice-issued notification. Failures never
// propagate to the creation call.
type Notifier interface {
	InvoiceIssued(ctx context.Context, n Notice) error
}

// Service handles invoice business logic.
type Service struct {
	repo      RepositoryPort
	mirror    BillingMirror
	notifier  Notifier
	logger    *slog.Logger
	autoEmail bool
	now       func() time.Time
}

// ServiceConfig carries optional collaborators and settings.
type ServiceConfig struct {
	Mirror    BillingMirror
	Notifier  Notifier
	AutoEmail bool
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		mirror:    cfg.Mirror,
		notifier:  cfg.Notifier,
		logger:    logger,
		autoEmail: cfg.AutoEmail,
		now:       time.Now,
	}
}

// Create issues a new invoice. Phase one commits the row (and consumes the
// allocated series); phase two mirrors it to the billing provider
// best-effort and records the outcome. The notification email never fails
// the call.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Invoice, error) {
	if input.Status == "" {
		input.Status = StatusPending
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", input.Status, httpx.ErrValidation)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", httpx.ErrValidation)
	}

	sync := BillingSyncNone
	if s.mirror != nil {
		sync = BillingSyncPending
	}

	inv, err := s.repo.Create(ctx, s.now().Year(), input, sync)
	if err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.runMirror(ctx, inv, input)
	}

	s.notify(ctx, inv)

	return s.repo.GetByID(ctx, inv.ID)
}

func (s *Service) runMirror(ctx context.Context, inv *Invoice, input CreateInput) {
	req := MirrorRequest{
		InvoiceID:        inv.ID,
		ClientEmail:      inv.ClientEmail,
		ClientPhone:      inv.ClientPhone,
		Amount:           inv.Amount,
		Description:      inv.Description,
		Date:             inv.Date,
		DueDate:          inv.DueDate,
		FinalizeAndEmail: s.autoEmail,
	}
	if input.Billing != nil {
		req.Items = input.Billing.Items
		req.DaysUntilDue = input.Billing.DaysUntilDue
		if input.Billing.FinalizeAndEmail != nil {
			req.FinalizeAndEmail = *input.Billing.FinalizeAndEmail
		}
	}

	result, err := s.mirror.Mirror(ctx, req)
	if err != nil {
		s.logger.Error("mirror invoice", slog.String("invoice", inv.ID), slog.Any("error", err))
		if recErr := s.repo.RecordBillingResult(ctx, inv.ID, nil); recErr != nil {
			s.logger.Error("record failed mirror", slog.String("invoice", inv.ID), slog.Any("error", recErr))
		}
		return
	}
	if err := s.repo.RecordBillingResult(ctx, inv.ID, result); err != nil {
		s.logger.Error("record mirror result", slog.String("invoice", inv.ID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, inv *Invoice) {
	if s.notifier == nil {
		return
	}
	// Re-read for the hosted URL captured by the mirror, if any.
	payURL := ""
	if fresh, err := s.repo.GetByID(ctx, inv.ID); err == nil && fresh.StripeHostedURL != nil {
		payURL = *fresh.StripeHostedURL
	}
	notice := Notice{To: inv.ClientEmail, InvoiceID: inv.ID, Amount: inv.Amount, PayURL: payURL}
	if err := s.notifier.InvoiceIssued(ctx, notice); err != nil {
		s.logger.Error("send invoice notification", slog.String("invoice", inv.ID), slog.Any("error", err))
	}
}

// GetByID returns a single invoice.
func (s *Service) GetByID(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update and returns the fresh row. Editing the
// amount does not re-run settlement; status converges at the next payment
// mutation or sweep.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Invoice, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("provide at least one field to update: %w", httpx.ErrValidation)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", *patch.Status, httpx.ErrValidation)
	}
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes an invoice.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List returns a page of invoices plus pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]ListRow, shared.Pagination, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("status %q: %w", filters.Status, httpx.ErrValidation)
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, total), nil
}
