package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"teamapp/internal/auth"
	"teamapp/internal/cache"
	"teamapp/internal/cli"
	apphttp "teamapp/internal/http"
	"teamapp/internal/log"
	"teamapp/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		// Requests still succeed without a broker; exports just stop.
		logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		amqpClient = nil
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	keys, err := auth.LoadKeys(os.Getenv, cfg.AuthKeysFile, time.Now())
	if err != nil {
		logger.Error("Failed to load API keys", "error", err, "file", cfg.AuthKeysFile)
		os.Exit(1)
	}
	if len(keys) == 0 {
		logger.Warn("No API keys configured, every protected route will answer 401")
	}
	authSvc := auth.NewService(keys, auth.Config{
		SessionTTL:  cfg.SessionTTL,
		MaxAttempts: cfg.LoginMaxAttempts,
		Lockout:     cfg.LoginLockout,
	})

	caches := cache.NewManager()
	authSvc.RegisterCaches(caches)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	svc := cli.NewServices(store, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:        authSvc,
		Agents:      svc.Agents,
		Commissions: svc.Commissions,
		Expenses:    svc.Expenses,
		Summary:     svc.Summary,
		Store:       store,
		Logger:      logger,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CookieSecure:       cfg.CookieSecure,
		TrustedProxies:     cfg.TrustedProxies,
	})

	var processor *services.RecurringProcessor
	if cfg.RecurringInterval > 0 {
		processor = services.NewRecurringProcessor(svc.Expenses, services.RecurringProcessorConfig{
			Interval: cfg.RecurringInterval,
		})
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting teamapp server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"keys", len(keys),
			"recurring_interval", cfg.RecurringInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if processor != nil {
		g.Go(func() error { return processor.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
