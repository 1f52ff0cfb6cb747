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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MedGhazal/InvoiceGenerator/internal/app"
	"github.com/MedGhazal/InvoiceGenerator/internal/auth"
	"github.com/MedGhazal/InvoiceGenerator/internal/export"
	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/observability"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
	"github.com/MedGhazal/InvoiceGenerator/internal/payments"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/cache"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
	"github.com/MedGhazal/InvoiceGenerator/jobs"
	"github.com/MedGhazal/InvoiceGenerator/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Balance reads fall back to the ledger until Redis comes back.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService)

	auditLogger := shared.NewAuditLogger(dbpool)

	partyRepo := parties.NewRepository(dbpool)
	partyService := parties.NewService(partyRepo, redisClient, cfg.BalanceCacheTTL)
	partyHandler := parties.NewHandler(logger, partyService, validate)

	metrics := observability.NewMetrics()

	invoiceRepo := invoicing.NewRepository(dbpool)
	invoiceService := invoicing.NewService(invoiceRepo, auditLogger, partyService)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService, validate)

	paymentRepo := payments.NewRepository(dbpool)
	paymentService := payments.NewService(paymentRepo, auditLogger, partyService)
	paymentHandler := payments.NewHandler(logger, paymentService, validate, shared.NewIdempotencyStore(dbpool), metrics)

	prefixes := export.Prefixes{Morocco: cfg.ClientAccountPrefixMA, France: cfg.ClientAccountPrefixFR}
	exportService := export.NewService(invoiceRepo, partyRepo, prefixes)
	exportHandler := export.NewHandler(logger, exportService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportService := report.NewService(invoiceService, partyRepo, reportClient)
	reportHandler := report.NewHandler(logger, reportService, reportClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthService:      authService,
		AuthHandler:      authHandler,
		PartiesHandler:   partyHandler,
		InvoicingHandler: invoiceHandler,
		PaymentsHandler:  paymentHandler,
		ExportHandler:    exportHandler,
		ReportHandler:    reportHandler,
		JobsHandler:      jobHandler,
		Metrics:          metrics,
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
