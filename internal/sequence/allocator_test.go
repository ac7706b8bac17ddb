package sequence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	require.Equal(t, "INV-2025-0001", FormatID(KindInvoice, 2025, 1))
	require.Equal(t, "PAY-2025-0042", FormatID(KindPayment, 2025, 42))
	require.Equal(t, "INV-2026-12345", FormatID(KindInvoice, 2026, 12345))
}

// counterTable mimics id_counters: the first upsert for a (kind, year)
// pair creates the row at 1, later upserts increment it, and the writer
// holds the row lock until its transaction ends.
type counterTable struct {
	mu   sync.Mutex
	rows map[string]*counterRow
}

type counterRow struct {
	mu   sync.Mutex
	last int64
}

func (t *counterTable) row(kind string, year int) *counterRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows == nil {
		t.rows = map[string]*counterRow{}
	}
	key := fmt.Sprintf("%s/%d", kind, year)
	r, ok := t.rows[key]
	if !ok {
		r = &counterRow{}
		t.rows[key] = r
	}
	return r
}

// lockingTx covers the slice of pgx.Tx the allocator touches. The upsert
// takes the counter row lock; Commit releases it, Rollback undoes the
// increment first, the way the real transaction would.
type lockingTx struct {
	pgx.Tx
	table *counterTable
	held  []*counterRow
}

func (t *lockingTx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	kind, _ := args[0].(string)
	year, _ := args[1].(int)
	row := t.table.row(kind, year)
	row.mu.Lock()
	t.held = append(t.held, row)
	row.last++
	return seriesRow{value: row.last}
}

func (t *lockingTx) Commit(context.Context) error {
	for _, row := range t.held {
		row.mu.Unlock()
	}
	t.held = nil
	return nil
}

func (t *lockingTx) Rollback(context.Context) error {
	for _, row := range t.held {
		row.last--
		row.mu.Unlock()
	}
	t.held = nil
	return nil
}

type seriesRow struct {
	value int64
}

func (r seriesRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.value
	return nil
}

func TestNextSerializesConcurrentAllocations(t *testing.T) {
	table := &counterTable{}
	alloc := NewAllocator()

	const workers = 50
	series := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := &lockingTx{table: table}
			n, err := alloc.Next(context.Background(), tx, KindInvoice, 2026)
			series[i], errs[i] = n, err
			_ = tx.Commit(context.Background())
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.False(t, seen[series[i]], "series %d allocated twice", series[i])
		seen[series[i]] = true
	}
	for n := int64(1); n <= workers; n++ {
		require.True(t, seen[n], "series %d missing, sequence has a gap", n)
	}
}

func TestConcurrentPaymentIDsAreConsecutive(t *testing.T) {
	table := &counterTable{}
	alloc := NewAllocator()

	ids := make(chan string, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := &lockingTx{table: table}
			n, err := alloc.Next(context.Background(), tx, KindPayment, 2026)
			if err == nil {
				ids <- FormatID(KindPayment, 2026, n)
			}
			_ = tx.Commit(context.Background())
		}()
	}
	wg.Wait()
	close(ids)

	var got []string
	for id := range ids {
		got = append(got, id)
	}
	sort.Strings(got)
	require.Equal(t, []string{"PAY-2026-0001", "PAY-2026-0002"}, got)
}

func TestRollbackReturnsSeries(t *testing.T) {
	table := &counterTable{}
	alloc := NewAllocator()
	ctx := context.Background()

	tx := &lockingTx{table: table}
	n, err := alloc.Next(ctx, tx, KindInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback(ctx))

	tx = &lockingTx{table: table}
	n, err = alloc.Next(ctx, tx, KindInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, tx.Commit(ctx))
}

func TestCountersAreIndependentPerKindAndYear(t *testing.T) {
	table := &counterTable{}
	alloc := NewAllocator()
	ctx := context.Background()

	next := func(kind Kind, year int) int64 {
		tx := &lockingTx{table: table}
		n, err := alloc.Next(ctx, tx, kind, year)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		return n
	}

	require.Equal(t, int64(1), next(KindInvoice, 2025))
	require.Equal(t, int64(2), next(KindInvoice, 2025))
	require.Equal(t, int64(1), next(KindPayment, 2025))
	require.Equal(t, int64(1), next(KindInvoice, 2026))
}
