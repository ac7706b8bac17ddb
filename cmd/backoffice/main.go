package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/everpower/backoffice/internal/app"
	"github.com/everpower/backoffice/internal/auth"
	"github.com/everpower/backoffice/internal/billing"
	"github.com/everpower/backoffice/internal/invoices"
	"github.com/everpower/backoffice/internal/observability"
	"github.com/everpower/backoffice/internal/payments"
	"github.com/everpower/backoffice/internal/platform/db"
	"github.com/everpower/backoffice/internal/reports"
	"github.com/everpower/backoffice/internal/sequence"
	"github.com/everpower/backoffice/internal/users"
	"github.com/everpower/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	allocator := sequence.NewAllocator()
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewQueueNotifier(jobClient)

	mirror := billing.NewMirror(billing.Config{
		SecretKey:       cfg.StripeSecretKey,
		DefaultCurrency: cfg.StripeDefaultCurrency,
	}, logger)

	invoiceRepo := invoices.NewRepository(pool, allocator)
	invoiceService := invoices.NewService(invoiceRepo, logger, invoices.ServiceConfig{
		Mirror:    mirrorOrNil(mirror),
		Notifier:  notifierOrNil(notifier),
		AutoEmail: cfg.StripeAutoEmail,
	})
	invoicesHandler := invoices.NewHandler(logger, invoiceService, validate)

	paymentRepo := payments.NewRepository(pool, allocator)
	paymentService := payments.NewService(paymentRepo)
	paymentsHandler := payments.NewHandler(logger, paymentService, validate)

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo, passwordMailer(notifier), logger)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authMiddleware := auth.NewMiddleware(issuer)
	authService := auth.NewService(userRepo, issuer)
	authHandler := auth.NewHandler(logger, authService, validate)

	usersHandler := users.NewHandler(logger, userService, validate, users.RouteGuards{
		Admin:       authMiddleware.RequireAdmin,
		SelfOrAdmin: authMiddleware.RequireSelfOrAdmin,
	})

	reportRepo := reports.NewRepository(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(reportRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportService)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		InvoicesHandler: invoicesHandler,
		PaymentsHandler: paymentsHandler,
		UsersHandler:    usersHandler,
		ReportsHandler:  reportsHandler,
		Metrics:         metrics,
		StartedAt:       time.Now(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// mirrorOrNil keeps a typed-nil *billing.Mirror from masquerading as a
// non-nil interface.
func mirrorOrNil(m *billing.Mirror) invoices.BillingMirror {
	if m == nil {
		return nil
	}
	return m
}

func notifierOrNil(n *jobs.QueueNotifier) invoices.Notifier {
	if n == nil {
		return nil
	}
	return n
}

func passwordMailer(n *jobs.QueueNotifier) users.PasswordMailer {
	if n == nil {
		return nil
	}
	return n
}
