package settlement

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	amount   float64
	status   string
	payments map[string]memPayment
	writes   int
}

type memPayment struct {
	amount float64
	status string
}

func (s *memStore) InvoiceAmount(ctx context.Context, invoiceID string) (float64, string, error) {
	return s.amount, s.status, nil
}

func (s *memStore) CompletedTotal(ctx context.Context, invoiceID string) (float64, error) {
	var total float64
	for _, p := range s.payments {
		if p.status == "COMPLETED" {
			total += p.amount
		}
	}
	return total, nil
}

func (s *memStore) SetInvoiceStatus(ctx context.Context, invoiceID, status string) error {
	s.status = status
	s.writes++
	return nil
}

func TestResyncFlipsToPaidWhenCovered(t *testing.T) {
	store := &memStore{amount: 1000, status: StatusPending, payments: map[string]memPayment{
		"PAY-2025-0001": {amount: 1000, status: "COMPLETED"},
	}}

	status, err := Resync(context.Background(), store, "INV-2025-0001")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)
	require.Equal(t, StatusPaid, store.status)
}

func TestResyncDowngradesToPending(t *testing.T) {
	store := &memStore{amount: 1000, status: StatusPaid, payments: map[string]memPayment{
		"PAY-2025-0001": {amount: 400, status: "COMPLETED"},
		"PAY-2025-0002": {amount: 600, status: "FAILED"},
	}}

	status, err := Resync(context.Background(), store, "INV-2025-0001")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)
}

func TestResyncNeverWritesOverdue(t *testing.T) {
	// An overdue invoice that is still uncovered downgrades to PENDING;
	// only the sweep may re-derive OVERDUE.
	store := &memStore{amount: 500, status: "OVERDUE", payments: map[string]memPayment{
		"PAY-2025-0001": {amount: 100, status: "COMPLETED"},
	}}

	status, err := Resync(context.Background(), store, "INV-2025-0001")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)
}

func TestResyncIdempotent(t *testing.T) {
	store := &memStore{amount: 250, status: StatusPending, payments: map[string]memPayment{
		"PAY-2025-0001": {amount: 250, status: "COMPLETED"},
	}}

	_, err := Resync(context.Background(), store, "INV-2025-0001")
	require.NoError(t, err)
	require.Equal(t, 1, store.writes)

	// Second call with no intervening writes must not touch storage.
	status, err := Resync(context.Background(), store, "INV-2025-0001")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)
	require.Equal(t, 1, store.writes)
}

func TestResyncInvariantRandomizedMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"PENDING", "COMPLETED", "FAILED", "REFUNDED"}

	for iter := 0; iter < 200; iter++ {
		store := &memStore{amount: float64(rng.Intn(2000) + 1), status: StatusPending, payments: map[string]memPayment{}}

		ops := rng.Intn(20) + 1
		for i := 0; i < ops; i++ {
			switch rng.Intn(3) {
			case 0: // create
				id := fmt.Sprintf("PAY-%d", len(store.payments))
				store.payments[id] = memPayment{
					amount: float64(rng.Intn(1000) + 1),
					status: statuses[rng.Intn(len(statuses))],
				}
			case 1: // update
				for id := range store.payments {
					store.payments[id] = memPayment{
						amount: float64(rng.Intn(1000) + 1),
						status: statuses[rng.Intn(len(statuses))],
					}
					break
				}
			case 2: // delete
				for id := range store.payments {
					delete(store.payments, id)
					break
				}
			}
		}

		status, err := Resync(context.Background(), store, "INV-X")
		require.NoError(t, err)

		paid, _ := store.CompletedTotal(context.Background(), "INV-X")
		if paid >= store.amount {
			require.Equal(t, StatusPaid, status)
		} else {
			require.Equal(t, StatusPending, status)
		}
	}
}
