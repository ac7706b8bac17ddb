package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/everpower/backoffice/internal/platform/db"
	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/sequence"
	"github.com/everpower/backoffice/internal/shared"
)

const invoiceColumns = `id, year, series, client_email, client_phone, amount, status, date, due_date,
	description, customer_id, billing_sync, stripe_invoice_id, stripe_status, stripe_hosted_url,
	stripe_pdf_url, stripe_customer_id, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool      *pgxpool.Pool
	allocator sequence.Allocator
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, allocator sequence.Allocator) *Repository {
	return &Repository{pool: pool, allocator: allocator}
}

// Create allocates the next invoice series for the given year and inserts
// the row, all in one transaction. A failure rolls back the counter
// increment together with the insert.
func (r *Repository) Create(ctx context.Context, year int, input CreateInput, sync BillingSync) (*Invoice, error) {
	var id string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		series, err := r.allocator.Next(ctx, tx, sequence.KindInvoice, year)
		if err != nil {
			return err
		}
		id = sequence.FormatID(sequence.KindInvoice, year, series)

		_, err = tx.Exec(ctx, `
			INSERT INTO invoices (id, year, series, client_email, client_phone, amount, status,
				date, due_date, description, customer_id, billing_sync)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, id, year, series, input.ClientEmail, input.ClientPhone, input.Amount, string(input.Status),
			input.Date, input.DueDate, input.Description, input.CustomerID, string(sync))
		if err != nil {
			return fmt.Errorf("invoices: insert %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// RecordBillingResult stores the outcome of the external mirror (phase two
// of invoice creation). A nil result marks the sync FAILED.
func (r *Repository) RecordBillingResult(ctx context.Context, id string, result *MirrorResult) error {
	if result == nil {
		_, err := r.pool.Exec(ctx,
			`UPDATE invoices SET billing_sync=$2, updated_at=now() WHERE id=$1`,
			id, string(BillingSyncFailed))
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET billing_sync=$2, stripe_invoice_id=$3, stripe_status=$4, stripe_hosted_url=$5,
			stripe_pdf_url=$6, stripe_customer_id=$7, updated_at=now()
		WHERE id=$1
	`, id, string(BillingSyncSynced), result.InvoiceID, result.Status, result.HostedURL,
		result.PDFURL, result.CustomerID)
	return err
}

// GetByID loads a single invoice.
func (r *Repository) GetByID(ctx context.Context, id string) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("invoices: get %s: %w", id, err)
	}
	return inv, nil
}

// Update applies a partial update. The column set is assembled from the
// patch against a fixed list; no caller-supplied identifiers reach the SQL.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.ClientEmail != nil {
		add("client_email", *patch.ClientEmail)
	}
	if patch.ClientPhone != nil {
		add("client_phone", *patch.ClientPhone)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Date != nil {
		add("date", *patch.Date)
	}
	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.CustomerID != nil {
		add("customer_id", *patch.CustomerID)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET `+strings.Join(sets, ", ")+` WHERE id=$1`, args...)
	if err != nil {
		return fmt.Errorf("invoices: update %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// Delete removes an invoice. Payments cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// List returns a page of invoices with the computed outstanding column and
// the total match count for pagination.
func (r *Repository) List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]ListRow, int, error) {
	where := []string{}
	args := []any{}

	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filters.Year != 0 {
		args = append(args, filters.Year)
		where = append(where, fmt.Sprintf("i.year = $%d", len(args)))
	}
	if filters.Query != "" {
		args = append(args, "%"+filters.Query+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(i.id ILIKE $%d OR i.client_email ILIKE $%d OR i.client_phone ILIKE $%d OR i.description ILIKE $%d)",
			n, n, n, n))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`
		SELECT %s,
			i.amount - COALESCE(p.total_paid, 0) AS over_due,
			count(*) OVER () AS total
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount) AS total_paid
			FROM payments
			WHERE status <> 'FAILED'
			GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		%s
		ORDER BY i.year DESC, i.series DESC
		LIMIT $%d OFFSET $%d`,
		prefixColumns("i"), whereSQL, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	var out []ListRow
	total := 0
	for rows.Next() {
		var lr ListRow
		if err := scanInvoiceInto(rows, &lr.Invoice, &lr.OverDue, &total); err != nil {
			return nil, 0, fmt.Errorf("invoices: scan list row: %w", err)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("invoices: list rows: %w", err)
	}
	return out, total, nil
}

// MarkOverdue bulk-transitions past-due, uncovered invoices to OVERDUE and
// returns the number of rows changed. Used by the daily sweep.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices i
		SET status = 'OVERDUE', updated_at = now()
		WHERE i.due_date < $1
		  AND i.status NOT IN ('PAID', 'OVERDUE')
		  AND COALESCE((
				SELECT SUM(p.amount) FROM payments p
				WHERE p.invoice_id = i.id AND p.status = 'COMPLETED'
			), 0) < i.amount
	`, now)
	if err != nil {
		return 0, fmt.Errorf("invoices: mark overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(invoiceColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	if err := scanInvoiceInto(row, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanInvoiceInto(row rowScanner, inv *Invoice, extra ...any) error {
	dest := []any{
		&inv.ID, &inv.Year, &inv.Series, &inv.ClientEmail, &inv.ClientPhone, &inv.Amount,
		&inv.Status, &inv.Date, &inv.DueDate, &inv.Description, &inv.CustomerID,
		&inv.BillingSync, &inv.StripeInvoiceID, &inv.StripeStatus, &inv.StripeHostedURL,
		&inv.StripePDFURL, &inv.StripeCustomerID, &inv.CreatedAt, &inv.UpdatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}
