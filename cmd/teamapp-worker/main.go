package main

import (
	"context"
	"errors"
	"os"
	"time"

	"teamapp/internal/cache"
	"teamapp/internal/cli"
	"teamapp/internal/log"
	"teamapp/internal/services"
	"teamapp/internal/sheets"
	gsheet "teamapp/internal/sheets/google"
	mem "teamapp/internal/sheets/memory"
	"teamapp/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentWorker)
	logger.Info("Starting teamapp-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	store, closeStore, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	var exporter sheets.ExpenseExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled, exporting to memory only")
	}

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	collections := services.NewCollections(store)
	exportWorker := worker.NewExportWorker(collections.Expenses, exporter, worker.DefaultConfig())

	caches := cache.NewManager()
	exportWorker.RegisterCaches(caches)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := amqpClient.ConsumeWithRetry(ctx, exportWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("teamapp-worker shutdown complete")
}
