package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"teamapp/internal/cli"
	"teamapp/internal/log"
	"teamapp/internal/services"
)

func main() {
	cli.LoadEnvFile()

	var (
		once     bool
		interval time.Duration
		backend  string
		dataDir  string
	)
	flags := pflag.NewFlagSet("recurring-worker", pflag.ContinueOnError)
	flags.BoolVar(&once, "once", false, "materialize due expenses once and exit")
	flags.DurationVar(&interval, "interval", 0, "processing interval (default: RECURRING_INTERVAL)")
	flags.StringVar(&backend, "backend", "", "data backend, json or sqlite (default: DATA_BACKEND)")
	flags.StringVar(&dataDir, "data-dir", "", "json backend directory (default: DATA_DIR)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if backend != "" {
		cfg.DataBackend = backend
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if interval > 0 {
		cfg.RecurringInterval = interval
	}

	store, closeStore, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, materializing without events", "error", err)
		amqpClient = nil
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	svc := cli.NewServices(store, amqpClient)
	processor := services.NewRecurringProcessor(svc.Expenses, services.RecurringProcessorConfig{
		Interval: cfg.RecurringInterval,
	})

	if once {
		res, err := processor.ProcessDue(context.Background())
		if err != nil {
			logger.Error("Processing failed", "error", err)
			closeStore()
			os.Exit(1)
		}
		logger.Info("Processing complete", "expenses_created", len(res.Created))
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Recurring processor did not stop cleanly", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start recurring processor", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
