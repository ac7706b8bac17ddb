package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/everpower/backoffice/internal/platform/httpx"
	_ "github.com/everpower/backoffice/internal/testing/guard"
)

type memRepo struct {
	totals     Totals
	received   map[Range]float64
	open       []OpenInvoice
	totalCalls int
}

func (m *memRepo) Totals(context.Context) (Totals, error) {
	m.totalCalls++
	return m.totals, nil
}

func (m *memRepo) ReceivedBetween(_ context.Context, rng Range) (float64, error) {
	return m.received[rng], nil
}

func (m *memRepo) OpenInvoices(context.Context) ([]OpenInvoice, error) {
	return m.open, nil
}

func fixedNow() time.Time {
	// A Wednesday.
	return time.Date(2026, 3, 18, 15, 30, 0, 0, time.UTC)
}

func newFixture(t *testing.T) (*memRepo, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &memRepo{
		totals: Totals{Invoiced: 10000, Completed: 7500, Pending: 500, InvoiceCount: 10, PaidCount: 6},
		received: map[Range]float64{
			{From: time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC)}: 100,
			{From: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC)}: 700,
			{From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}:   3000,
			{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}:   1200,
		},
		open: []OpenInvoice{
			{ClientEmail: "big@example.com", DueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Outstanding: 600},
			{ClientEmail: "big@example.com", DueDate: time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC), Outstanding: 300},
		},
	}
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.now = fixedNow
	return repo, svc
}

func TestOverviewAggregates(t *testing.T) {
	_, svc := newFixture(t)

	overview, err := svc.Overview(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, 2500.0, overview.Totals.Outstanding)
	require.Equal(t, 4, overview.Totals.ActiveInvoices)
	require.Equal(t, 75.0, overview.Totals.SuccessRate)
	require.Equal(t, 100.0, overview.Received.Today)
	require.Equal(t, 700.0, overview.Received.ThisWeek)
	require.Equal(t, 3000.0, overview.Received.Month)
	require.Len(t, overview.TopDebtors, 1)
	require.Equal(t, "big@example.com", overview.TopDebtors[0].ClientEmail)
	require.Equal(t, 900.0, overview.TopDebtors[0].Outstanding)
	require.Equal(t, DebtorBucket{Count: 1, Amount: 600}, overview.TopDebtors[0].Overdue)
	require.Equal(t, DebtorBucket{Count: 1, Amount: 300}, overview.TopDebtors[0].Pending)

	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), overview.Meta.MonthRange.From)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), overview.Meta.MonthRange.To)
}

func TestOverviewExplicitMonth(t *testing.T) {
	_, svc := newFixture(t)

	overview, err := svc.Overview(context.Background(), "2026-01")
	require.NoError(t, err)
	require.Equal(t, 1200.0, overview.Received.Month)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), overview.Meta.MonthRange.From)
}

func TestOverviewRejectsBadMonth(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.Overview(context.Background(), "March")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestOverviewCachesPerDay(t *testing.T) {
	repo, svc := newFixture(t)

	_, err := svc.Overview(context.Background(), "")
	require.NoError(t, err)
	_, err = svc.Overview(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, repo.totalCalls)
}

func TestOverviewWithoutCache(t *testing.T) {
	repo := &memRepo{received: map[Range]float64{}}
	svc := NewService(repo, nil)
	svc.now = fixedNow

	_, err := svc.Overview(context.Background(), "")
	require.NoError(t, err)
	_, err = svc.Overview(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 2, repo.totalCalls)
}

func TestRankDebtorsBucketsByDueDate(t *testing.T) {
	now := fixedNow()
	open := []OpenInvoice{
		// Past due, even if the sweep has not flipped its status yet.
		{ClientEmail: "late@example.com", DueDate: now.AddDate(0, 0, -2), Outstanding: 500},
		{ClientEmail: "late@example.com", DueDate: now.AddDate(0, 0, 5), Outstanding: 100},
		{ClientEmail: "small@example.com", DueDate: now.AddDate(0, 0, 1), Outstanding: 50},
		{ClientEmail: "mid@example.com", DueDate: now.AddDate(0, 0, -10), Outstanding: 200},
		{ClientEmail: "tiny@example.com", DueDate: now.AddDate(0, 0, 3), Outstanding: 10},
	}

	debtors := rankDebtors(open, now)

	require.Len(t, debtors, 3)
	require.Equal(t, "late@example.com", debtors[0].ClientEmail)
	require.Equal(t, 600.0, debtors[0].Outstanding)
	require.Equal(t, DebtorBucket{Count: 1, Amount: 500}, debtors[0].Overdue)
	require.Equal(t, DebtorBucket{Count: 1, Amount: 100}, debtors[0].Pending)
	require.Equal(t, "mid@example.com", debtors[1].ClientEmail)
	require.Equal(t, DebtorBucket{Count: 1, Amount: 200}, debtors[1].Overdue)
	require.Equal(t, "small@example.com", debtors[2].ClientEmail)
}

func TestWeekRangeStartsMonday(t *testing.T) {
	// Sunday belongs to the week starting the previous Monday.
	sunday := time.Date(2026, 3, 22, 10, 0, 0, 0, time.UTC)
	rng := weekRange(sunday)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), rng.To)
}
