package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/everpower/backoffice/internal/observability"
)

// TaskTypeOverdueSweep is the task type for the daily overdue sweep.
const TaskTypeOverdueSweep = "invoices:overdue-sweep"

// NewOverdueSweepTask constructs the sweep task. It carries no payload;
// the sweep always covers everything due at execution time.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueSweep, nil)
}

// Sweeper flips due, unsettled invoices to OVERDUE and reports how many
// rows changed.
type Sweeper interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// NewOverdueSweepHandler returns the worker-side handler for sweep tasks.
// A failed sweep is not retried: the next scheduled run covers it.
// metrics may be nil.
func NewOverdueSweepHandler(sweeper Sweeper, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, _ *asynq.Task) error {
		count, err := sweeper.MarkOverdue(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("overdue sweep", slog.Any("error", err))
			return asynq.SkipRetry
		}
		metrics.AddOverdueFlipped(count)
		logger.Info("overdue sweep complete", slog.Int64("flipped", count))
		return nil
	}
}
