// Package settlement recomputes an invoice's status from its payment
// totals. It is the single entry point for that rule: every payment
// mutation path calls Resync rather than re-deriving paid state inline.
package settlement

import (
	"context"
	"fmt"
)

// Invoice statuses written by Resync. OVERDUE is owned by the sweep job and
// is never written here; a downgrade lands on PENDING and waits for the
// next sweep.
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
)

// Store is the storage surface Resync needs. Implementations run on the
// caller's transaction so the recompute sees the triggering write.
type Store interface {
	// InvoiceAmount returns the invoice amount and current status.
	InvoiceAmount(ctx context.Context, invoiceID string) (amount float64, status string, err error)
	// CompletedTotal returns the sum of COMPLETED payments for the invoice.
	CompletedTotal(ctx context.Context, invoiceID string) (float64, error)
	// SetInvoiceStatus persists a status flip.
	SetInvoiceStatus(ctx context.Context, invoiceID, status string) error
}

// Resync recomputes and persists the invoice's settled status. Idempotent:
// it only writes when the derived status differs from the stored one, so a
// repeated call with unchanged data is a pure read. Returns the status in
// effect after the call.
func Resync(ctx context.Context, store Store, invoiceID string) (string, error) {
	amount, current, err := store.InvoiceAmount(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("settlement: load invoice %s: %w", invoiceID, err)
	}
	paid, err := store.CompletedTotal(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("settlement: sum payments for %s: %w", invoiceID, err)
	}

	next := StatusPending
	if paid >= amount {
		next = StatusPaid
	}
	if next == current {
		return current, nil
	}
	if err := store.SetInvoiceStatus(ctx, invoiceID, next); err != nil {
		return "", fmt.Errorf("settlement: set %s to %s: %w", invoiceID, next, err)
	}
	return next, nil
}
