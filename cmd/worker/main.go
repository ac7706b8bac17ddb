package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/everpower/backoffice/internal/app"
	"github.com/everpower/backoffice/internal/invoices"
	"github.com/everpower/backoffice/internal/mailer"
	"github.com/everpower/backoffice/internal/observability"
	"github.com/everpower/backoffice/internal/platform/db"
	"github.com/everpower/backoffice/internal/sequence"
	"github.com/everpower/backoffice/jobs"
)

// logSender stands in for SMTP when mail is not configured, so queued
// tasks drain instead of piling up retries.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) InvoiceIssued(_ context.Context, n invoices.Notice) error {
	s.logger.Info("mail disabled, dropping invoice notice",
		slog.String("to", n.To), slog.String("invoice", n.InvoiceID))
	return nil
}

func (s logSender) NewPassword(_ context.Context, to, _ string) error {
	s.logger.Info("mail disabled, dropping password mail", slog.String("to", to))
	return nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var sender jobs.MailSender
	smtp, err := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)
	if err != nil {
		logger.Error("init mailer", slog.Any("error", err))
		os.Exit(1)
	}
	if smtp != nil {
		sender = smtp
	} else {
		sender = logSender{logger: logger}
	}

	location, err := time.LoadLocation(cfg.OverdueTZ)
	if err != nil {
		logger.Error("load overdue timezone", slog.String("tz", cfg.OverdueTZ), slog.Any("error", err))
		os.Exit(1)
	}

	invoiceRepo := invoices.NewRepository(pool, sequence.NewAllocator())

	metrics := observability.NewMetrics()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener", slog.Any("error", err))
		}
	}()
	defer metricsSrv.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  location,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendMail, Handler: jobs.NewMailHandler(sender, logger)},
			{Type: jobs.TaskTypeOverdueSweep, Handler: jobs.NewOverdueSweepHandler(invoiceRepo, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueCron, Task: jobs.NewOverdueSweepTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
