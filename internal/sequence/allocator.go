// Package sequence allocates gapless, year-scoped series numbers for
// document identifiers such as INV-2025-0001 and PAY-2025-0001.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Kind is the counter namespace. Invoices and payments count independently.
type Kind string

const (
	KindInvoice Kind = "INV"
	KindPayment Kind = "PAY"
)

// Allocator hands out the next series number for a (kind, year) pair.
// Next must run on the caller's transaction: the upsert locks the counter
// row until commit, so concurrent creators for the same pair serialize and
// a rollback returns the number instead of leaving a gap.
type Allocator interface {
	Next(ctx context.Context, tx pgx.Tx, kind Kind, year int) (int64, error)
}

// PgAllocator is the PostgreSQL-backed Allocator.
type PgAllocator struct{}

// NewAllocator constructs a PgAllocator.
func NewAllocator() *PgAllocator {
	return &PgAllocator{}
}

// Next increments and returns the series counter for (kind, year), creating
// the counter row at 1 on first use.
func (PgAllocator) Next(ctx context.Context, tx pgx.Tx, kind Kind, year int) (int64, error) {
	var series int64
	err := tx.QueryRow(ctx, `
		INSERT INTO id_counters (kind, year, last_series)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year)
		DO UPDATE SET last_series = id_counters.last_series + 1
		RETURNING last_series
	`, string(kind), year).Scan(&series)
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s/%d: %w", kind, year, err)
	}
	return series, nil
}

// FormatID renders the external identifier, e.g. INV-2025-0042. The series
// is zero-padded to four digits and widens naturally beyond 9999.
func FormatID(kind Kind, year int, series int64) string {
	return fmt.Sprintf("%s-%d-%04d", kind, year, series)
}
