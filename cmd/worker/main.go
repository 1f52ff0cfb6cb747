package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MedGhazal/InvoiceGenerator/internal/app"
	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/cache"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
	"github.com/MedGhazal/InvoiceGenerator/jobs"
	"github.com/MedGhazal/InvoiceGenerator/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DocumentsDir, 0o755); err != nil {
		logger.Error("create documents dir", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool)

	partyRepo := parties.NewRepository(pool)
	partyService := parties.NewService(partyRepo, redisClient, cfg.BalanceCacheTTL)

	invoiceRepo := invoicing.NewRepository(pool)
	invoiceService := invoicing.NewService(invoiceRepo, auditLogger, partyService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportService := report.NewService(invoiceService, partyRepo, reportClient)

	renderJob := jobs.NewInvoiceRenderJob(reportService, logger, nil, cfg.DocumentsDir)
	reminderJob := jobs.NewPaymentReminderJob(pool, logger, nil)
	refreshJob := jobs.NewBalanceRefreshJob(jobs.PGTouchedLister{Pool: pool}, partyService, logger, nil)

	reminderTask, err := jobs.NewPaymentReminderTask(jobs.PaymentReminderPayload{})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	refreshTask, err := jobs.NewBalanceRefreshTask(jobs.BalanceRefreshPayload{SinceHours: 24})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceRender, Handler: renderJob.Handle},
			{Type: jobs.TaskPaymentReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskBalanceRefresh, Handler: refreshJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
