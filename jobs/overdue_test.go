package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	count int64
	err   error
	calls int
	last  time.Time
}

func (f *fakeSweeper) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	f.calls++
	f.last = now
	return f.count, f.err
}

func TestOverdueSweepHandler(t *testing.T) {
	sweeper := &fakeSweeper{count: 3}
	handler := NewOverdueSweepHandler(sweeper, nil, nil)

	err := handler(context.Background(), NewOverdueSweepTask())
	require.NoError(t, err)
	require.Equal(t, 1, sweeper.calls)
	require.WithinDuration(t, time.Now().UTC(), sweeper.last, time.Minute)
}

func TestOverdueSweepHandlerSwallowsErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	handler := NewOverdueSweepHandler(sweeper, nil, nil)

	// SkipRetry is still an error to asynq, which drops the task instead
	// of retrying it.
	err := handler(context.Background(), NewOverdueSweepTask())
	require.Error(t, err)
}
