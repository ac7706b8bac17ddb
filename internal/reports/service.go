package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everpower/backoffice/internal/platform/httpx"
)

// RepositoryPort defines the aggregates the overview needs.
type RepositoryPort interface {
	Totals(ctx context.Context) (Totals, error)
	ReceivedBetween(ctx context.Context, rng Range) (float64, error)
	OpenInvoices(ctx context.Context) ([]OpenInvoice, error)
}

const topDebtorLimit = 3

// Service assembles overview reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Overview builds the report for the given month ("YYYY-MM", empty means
// the current month). Results are cached per month and UTC day.
func (s *Service) Overview(ctx context.Context, month string) (*Overview, error) {
	now := s.now().UTC()
	monthRange, err := parseMonth(month, now)
	if err != nil {
		return nil, err
	}

	key, err := s.cache.BuildKey(ctx, "reports", "overview",
		monthRange.From.Format("2006-01"), now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	var overview Overview
	err = s.cache.FetchJSON(ctx, key, &overview, func(ctx context.Context) (interface{}, error) {
		return s.build(ctx, monthRange, now)
	})
	if err != nil {
		return nil, err
	}
	return &overview, nil
}

func (s *Service) build(ctx context.Context, monthRange Range, now time.Time) (*Overview, error) {
	var (
		totals   Totals
		received Received
		open     []OpenInvoice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.repo.Totals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		received.Today, err = s.repo.ReceivedBetween(gctx, dayRange(now))
		return err
	})
	g.Go(func() error {
		var err error
		received.ThisWeek, err = s.repo.ReceivedBetween(gctx, weekRange(now))
		return err
	})
	g.Go(func() error {
		var err error
		received.Month, err = s.repo.ReceivedBetween(gctx, monthRange)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = s.repo.OpenInvoices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals.Outstanding = totals.Invoiced - totals.Completed
	if totals.Outstanding < 0 {
		totals.Outstanding = 0
	}
	totals.ActiveInvoices = totals.InvoiceCount - totals.PaidCount
	if totals.Invoiced > 0 {
		totals.SuccessRate = math.Round(totals.Completed/totals.Invoiced*100*100) / 100
	}

	return &Overview{
		Totals:     totals,
		Received:   received,
		TopDebtors: rankDebtors(open, now),
		Meta:       Meta{MonthRange: monthRange, GeneratedAt: now},
	}, nil
}

// rankDebtors groups open invoices per client and buckets each by due
// date against now: past-due outstanding counts as overdue, the rest as
// pending. The stored invoice status does not matter — an invoice the
// sweep has not flipped yet still lands in the overdue bucket.
func rankDebtors(open []OpenInvoice, now time.Time) []Debtor {
	byEmail := map[string]*Debtor{}
	var order []string
	for _, inv := range open {
		d, ok := byEmail[inv.ClientEmail]
		if !ok {
			d = &Debtor{ClientEmail: inv.ClientEmail}
			byEmail[inv.ClientEmail] = d
			order = append(order, inv.ClientEmail)
		}
		d.Outstanding += inv.Outstanding
		if inv.DueDate.Before(now) {
			d.Overdue.Count++
			d.Overdue.Amount += inv.Outstanding
		} else {
			d.Pending.Count++
			d.Pending.Amount += inv.Outstanding
		}
	}

	out := make([]Debtor, 0, len(order))
	for _, email := range order {
		out = append(out, *byEmail[email])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Outstanding > out[j].Outstanding
	})
	if len(out) > topDebtorLimit {
		out = out[:topDebtorLimit]
	}
	return out
}

// parseMonth turns "YYYY-MM" into its UTC month range, defaulting to the
// month containing now.
func parseMonth(month string, now time.Time) (Range, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return Range{}, fmt.Errorf("month %q is not YYYY-MM: %w", month, httpx.ErrValidation)
		}
		start = time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return Range{From: start, To: start.AddDate(0, 1, 0)}, nil
}

func dayRange(now time.Time) Range {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Range{From: start, To: start.AddDate(0, 0, 1)}
}

// weekRange returns the ISO week containing now, Monday through Sunday.
func weekRange(now time.Time) Range {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(weekday - 1))
	return Range{From: start, To: start.AddDate(0, 0, 7)}
}
