package main

import (
	"context"
	"errors"
	"os"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/cli"
	"financeiro/internal/log"
	gsheet "financeiro/internal/sheets/google"
	"financeiro/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting financeiro-worker",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"batch_size", cfg.MirrorBatchSize,
		"poll_interval", cfg.MirrorPollInterval)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, sheetsClient, cfg.MirrorBatchSize)
	poller := worker.NewPoller(mirror, worker.PollerConfig{PollInterval: cfg.MirrorPollInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := poller.Stop(ctx); err != nil {
			logger.Warn("Poller stop error", "error", err)
		}
	})

	// rows recorded while the worker was down
	logger.Info("Performing startup mirror check...")
	if err := mirror.StartupCheck(ctx); err != nil {
		logger.Error("Startup mirror check failed", "error", err)
	}

	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start poller", "error", err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeExpenseRecorded(ctx, mirror.HandleRecorded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
