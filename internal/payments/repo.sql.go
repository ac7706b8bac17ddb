package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/everpower/backoffice/internal/platform/db"
	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/sequence"
	"github.com/everpower/backoffice/internal/settlement"
	"github.com/everpower/backoffice/internal/shared"
)

const paymentColumns = `id, year, series, invoice_id, client_email, amount, method, status, date,
	reference, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for payments. Every
// mutation runs in one transaction that ends with a settlement resync of
// the owning invoice.
type Repository struct {
	pool      *pgxpool.Pool
	allocator sequence.Allocator
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, allocator sequence.Allocator) *Repository {
	return &Repository{pool: pool, allocator: allocator}
}

// txStore adapts a transaction to the settlement store so the resync sees
// the uncommitted payment write.
type txStore struct {
	tx pgx.Tx
}

func (s txStore) InvoiceAmount(ctx context.Context, invoiceID string) (float64, string, error) {
	var amount float64
	var status string
	err := s.tx.QueryRow(ctx,
		`SELECT amount, status FROM invoices WHERE id = $1`, invoiceID,
	).Scan(&amount, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("invoice %s: %w", invoiceID, httpx.ErrNotFound)
	}
	return amount, status, err
}

func (s txStore) CompletedTotal(ctx context.Context, invoiceID string) (float64, error) {
	var total float64
	err := s.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1 AND status = $2`,
		invoiceID, string(StatusCompleted),
	).Scan(&total)
	return total, err
}

func (s txStore) SetInvoiceStatus(ctx context.Context, invoiceID, status string) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`,
		invoiceID, status)
	return err
}

// Create locks the owning invoice, allocates the next payment series for
// the given year, inserts the row, and resyncs the invoice status, all in
// one transaction.
func (r *Repository) Create(ctx context.Context, year int, input CreateInput) (*Payment, error) {
	var id string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceEmail string
		err := tx.QueryRow(ctx,
			`SELECT client_email FROM invoices WHERE id = $1 FOR UPDATE`, input.InvoiceID,
		).Scan(&invoiceEmail)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %s: %w", input.InvoiceID, httpx.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("payments: lock invoice %s: %w", input.InvoiceID, err)
		}

		email := input.ClientEmail
		if email == "" {
			email = invoiceEmail
		}

		series, err := r.allocator.Next(ctx, tx, sequence.KindPayment, year)
		if err != nil {
			return err
		}
		id = sequence.FormatID(sequence.KindPayment, year, series)

		_, err = tx.Exec(ctx, `
			INSERT INTO payments (id, year, series, invoice_id, client_email, amount, method, status,
				date, reference)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, id, year, series, input.InvoiceID, email, input.Amount, string(input.Method),
			string(input.Status), input.Date, input.Reference)
		if err != nil {
			return fmt.Errorf("payments: insert %s: %w", id, err)
		}

		_, err = settlement.Resync(ctx, txStore{tx}, input.InvoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns one payment.
func (r *Repository) GetByID(ctx context.Context, id string) (*Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get %s: %w", id, err)
	}
	return p, nil
}

// Update applies a partial update and resyncs the owning invoice in the
// same transaction. Only the listed columns are patchable.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		sets := make([]string, 0, 7)
		args := make([]any, 0, 8)
		args = append(args, id)
		add := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if patch.ClientEmail != nil {
			add("client_email", *patch.ClientEmail)
		}
		if patch.Amount != nil {
			add("amount", *patch.Amount)
		}
		if patch.Method != nil {
			add("method", string(*patch.Method))
		}
		if patch.Status != nil {
			add("status", string(*patch.Status))
		}
		if patch.Date != nil {
			add("date", *patch.Date)
		}
		if patch.Reference != nil {
			add("reference", *patch.Reference)
		}
		sets = append(sets, "updated_at = now()")

		var invoiceID string
		err := tx.QueryRow(ctx,
			`UPDATE payments SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING invoice_id`,
			args...,
		).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("payments: update %s: %w", id, err)
		}

		_, err = settlement.Resync(ctx, txStore{tx}, invoiceID)
		return err
	})
}

// Delete removes a payment and resyncs the owning invoice in the same
// transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID string
		err := tx.QueryRow(ctx,
			`DELETE FROM payments WHERE id = $1 RETURNING invoice_id`, id,
		).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payment %s: %w", id, httpx.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("payments: delete %s: %w", id, err)
		}

		_, err = settlement.Resync(ctx, txStore{tx}, invoiceID)
		return err
	})
}

// List returns a filtered page of payments plus the unfiltered total for
// the same predicate.
func (r *Repository) List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]Payment, int, error) {
	where := make([]string, 0, 6)
	args := make([]any, 0, 8)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != "" {
		p := arg("%" + filters.Query + "%")
		where = append(where, fmt.Sprintf(
			`(id ILIKE %[1]s OR invoice_id ILIKE %[1]s OR client_email ILIKE %[1]s
				OR method ILIKE %[1]s OR status ILIKE %[1]s OR reference ILIKE %[1]s)`, p))
	}
	if filters.InvoiceID != "" {
		where = append(where, "invoice_id = "+arg(filters.InvoiceID))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(string(filters.Status)))
	}
	if filters.Method != "" {
		where = append(where, "method = "+arg(string(filters.Method)))
	}
	if filters.From != nil {
		where = append(where, "date >= "+arg(*filters.From))
	}
	if filters.To != nil {
		where = append(where, "date <= "+arg(*filters.To))
	}

	query := `SELECT ` + paymentColumns + `, count(*) OVER () AS total FROM payments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY date DESC, year DESC, series DESC LIMIT %s OFFSET %s",
		arg(page.Limit), arg(page.Offset()))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var out []Payment
	total := 0
	for rows.Next() {
		var p Payment
		if err := scanPaymentInto(rows, &p, &total); err != nil {
			return nil, 0, fmt.Errorf("payments: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("payments: list rows: %w", err)
	}
	return out, total, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := scanPaymentInto(row, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPaymentInto(row pgx.Row, p *Payment, extra ...any) error {
	dest := []any{
		&p.ID, &p.Year, &p.Series, &p.InvoiceID, &p.ClientEmail, &p.Amount, &p.Method,
		&p.Status, &p.Date, &p.Reference, &p.CreatedAt, &p.UpdatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}
