package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/sequence"
	"github.com/everpower/backoffice/internal/settlement"
	"github.com/everpower/backoffice/internal/shared"
)

type memInvoice struct {
	email  string
	amount float64
	status string
}

// memRepo mimics the SQL repository contract: every payment mutation ends
// with a settlement resync of the owning invoice.
type memRepo struct {
	invoices map[string]*memInvoice
	rows     map[string]*Payment
	series   map[int]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices: map[string]*memInvoice{},
		rows:     map[string]*Payment{},
		series:   map[int]int64{},
	}
}

func (m *memRepo) InvoiceAmount(_ context.Context, invoiceID string) (float64, string, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return 0, "", fmt.Errorf("invoice %s: %w", invoiceID, httpx.ErrNotFound)
	}
	return inv.amount, inv.status, nil
}

func (m *memRepo) CompletedTotal(_ context.Context, invoiceID string) (float64, error) {
	total := 0.0
	for _, p := range m.rows {
		if p.InvoiceID == invoiceID && p.Status == StatusCompleted {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *memRepo) SetInvoiceStatus(_ context.Context, invoiceID, status string) error {
	m.invoices[invoiceID].status = status
	return nil
}

func (m *memRepo) Create(ctx context.Context, year int, input CreateInput) (*Payment, error) {
	inv, ok := m.invoices[input.InvoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", input.InvoiceID, httpx.ErrNotFound)
	}
	email := input.ClientEmail
	if email == "" {
		email = inv.email
	}
	m.series[year]++
	p := &Payment{
		ID:          sequence.FormatID(sequence.KindPayment, year, m.series[year]),
		Year:        year,
		Series:      m.series[year],
		InvoiceID:   input.InvoiceID,
		ClientEmail: email,
		Amount:      input.Amount,
		Method:      input.Method,
		Status:      input.Status,
		Date:        input.Date,
		Reference:   input.Reference,
	}
	m.rows[p.ID] = p
	if _, err := settlement.Resync(ctx, m, p.InvoiceID); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Payment, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (m *memRepo) Update(ctx context.Context, id string, patch Patch) error {
	p, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
	}
	if patch.Amount != nil {
		p.Amount = *patch.Amount
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Method != nil {
		p.Method = *patch.Method
	}
	_, err := settlement.Resync(ctx, m, p.InvoiceID)
	return err
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	p, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
	}
	delete(m.rows, id)
	_, err := settlement.Resync(ctx, m, p.InvoiceID)
	return err
}

func (m *memRepo) List(_ context.Context, filters ListFilters, page shared.PageRequest) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.rows {
		if filters.InvoiceID != "" && p.InvoiceID != filters.InvoiceID {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, *p)
	}
	total := len(out)
	if page.Offset() >= total {
		return nil, total, nil
	}
	end := page.Offset() + page.Limit
	if end > total {
		end = total
	}
	return out[page.Offset():end], total, nil
}

const testInvoice = "INV-2026-0001"

func newFixture(amount float64) (*memRepo, *Service) {
	repo := newMemRepo()
	repo.invoices[testInvoice] = &memInvoice{
		email:  "client@example.com",
		amount: amount,
		status: settlement.StatusPending,
	}
	return repo, NewService(repo)
}

func validInput(amount float64) CreateInput {
	return CreateInput{
		InvoiceID: testInvoice,
		Amount:    amount,
		Method:    MethodBankTransfer,
		Date:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDefaultsAndSettles(t *testing.T) {
	repo, svc := newFixture(1000)

	p, err := svc.Create(context.Background(), validInput(1000))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status)
	require.Equal(t, "client@example.com", p.ClientEmail)
	require.Equal(t, fmt.Sprintf("PAY-%d-0001", time.Now().Year()), p.ID)
	require.Equal(t, settlement.StatusPaid, repo.invoices[testInvoice].status)
}

func TestPartialPaymentLeavesPending(t *testing.T) {
	repo, svc := newFixture(1000)

	_, err := svc.Create(context.Background(), validInput(400))
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPending, repo.invoices[testInvoice].status)
}

func TestManyPaymentsSettleInvoice(t *testing.T) {
	repo, svc := newFixture(1000)

	for i := 0; i < 1000; i++ {
		_, err := svc.Create(context.Background(), validInput(1))
		require.NoError(t, err)
	}
	require.Equal(t, settlement.StatusPaid, repo.invoices[testInvoice].status)

	last, err := svc.GetByID(context.Background(), fmt.Sprintf("PAY-%d-1000", time.Now().Year()))
	require.NoError(t, err)
	require.Equal(t, int64(1000), last.Series)
}

func TestPendingPaymentDoesNotSettle(t *testing.T) {
	repo, svc := newFixture(1000)

	input := validInput(1000)
	input.Status = StatusPending
	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPending, repo.invoices[testInvoice].status)
}

func TestDeleteDowngradesInvoice(t *testing.T) {
	repo, svc := newFixture(1000)

	p, err := svc.Create(context.Background(), validInput(1000))
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPaid, repo.invoices[testInvoice].status)

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	require.Equal(t, settlement.StatusPending, repo.invoices[testInvoice].status)
}

func TestUpdateStatusResyncs(t *testing.T) {
	repo, svc := newFixture(1000)

	p, err := svc.Create(context.Background(), validInput(1000))
	require.NoError(t, err)

	failed := StatusFailed
	_, err = svc.Update(context.Background(), p.ID, Patch{Status: &failed})
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPending, repo.invoices[testInvoice].status)

	completed := StatusCompleted
	_, err = svc.Update(context.Background(), p.ID, Patch{Status: &completed})
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPaid, repo.invoices[testInvoice].status)
}

func TestCreateRejectsBadInput(t *testing.T) {
	_, svc := newFixture(1000)

	input := validInput(0)
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, httpx.ErrValidation)

	input = validInput(100)
	input.Method = "BARTER"
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateUnknownInvoice(t *testing.T) {
	_, svc := newFixture(1000)

	input := validInput(100)
	input.InvoiceID = "INV-2026-9999"
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	_, svc := newFixture(1000)
	_, err := svc.Update(context.Background(), "PAY-2026-0001", Patch{})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestListFiltersByStatus(t *testing.T) {
	_, svc := newFixture(10000)

	_, err := svc.Create(context.Background(), validInput(100))
	require.NoError(t, err)
	input := validInput(100)
	input.Status = StatusPending
	_, err = svc.Create(context.Background(), input)
	require.NoError(t, err)

	rows, pagination, err := svc.List(context.Background(),
		ListFilters{Status: StatusPending}, shared.PageRequest{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, pagination.Total)
}
