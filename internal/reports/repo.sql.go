package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the overview.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Totals returns the invoice and payment headline sums.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM invoices), 0)                             AS invoiced,
			COALESCE((SELECT SUM(amount) FROM payments WHERE status = 'COMPLETED'), 0)  AS completed,
			COALESCE((SELECT SUM(amount) FROM payments WHERE status = 'PENDING'), 0)    AS pending,
			(SELECT count(*) FROM invoices)                                             AS invoice_count,
			(SELECT count(*) FROM invoices WHERE status = 'PAID')                       AS paid_count
	`).Scan(&t.Invoiced, &t.Completed, &t.Pending, &t.InvoiceCount, &t.PaidCount)
	if err != nil {
		return Totals{}, fmt.Errorf("reports: totals: %w", err)
	}
	return t, nil
}

// ReceivedBetween sums completed payments in the half-open [from, to) range.
func (r *Repository) ReceivedBetween(ctx context.Context, rng Range) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE status = 'COMPLETED' AND date >= $1 AND date < $2
	`, rng.From, rng.To).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("reports: received between: %w", err)
	}
	return sum, nil
}

// OpenInvoices returns every invoice with outstanding balance, counting
// all non-FAILED payments against the amount. The stored status is
// irrelevant here: ranking buckets on due date.
func (r *Repository) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.client_email, i.due_date,
			i.amount - COALESCE(p.total_paid, 0) AS outstanding
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount) AS total_paid
			FROM payments WHERE status <> 'FAILED'
			GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		WHERE i.amount - COALESCE(p.total_paid, 0) > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("reports: open invoices: %w", err)
	}
	defer rows.Close()

	var out []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.ClientEmail, &inv.DueDate, &inv.Outstanding); err != nil {
			return nil, fmt.Errorf("reports: scan open invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reports: open invoice rows: %w", err)
	}
	return out, nil
}
