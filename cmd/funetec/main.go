package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"funetec/internal/cache"
	"funetec/internal/cli"
	"funetec/internal/config"
	apphttp "funetec/internal/http"
	"funetec/internal/log"
	"funetec/internal/services"
	"funetec/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)
	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "funetec stopped with error", err)
	}
	logger.Info("funetec stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting funetec", log.FieldOperation, log.OpStartup, "port", cfg.Port)

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	repo, err := cli.OpenRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	opts := services.Options{
		Logger:         logger,
		Location:       location,
		LockTimeout:    cfg.LockTimeout,
		ReportCacheTTL: cfg.ReportCacheTTL,
		DueSoonDays:    cfg.DueSoonDays,
	}

	// The ledger keeps working without a broker; signals are skipped.
	var broker apphttp.BrokerHealth
	var notifier services.Notifier
	amqpClient, err := cli.ConnectBroker(cfg)
	if err != nil {
		logger.Warn("AMQP unavailable, installment events disabled", log.FieldError, err)
	} else if amqpClient != nil {
		defer amqpClient.Close()
		broker, notifier = amqpClient, amqpClient
	}
	opts.Notifier = notifier

	ledger := services.NewLedgerService(repo, opts)
	inbox := services.NewInbox(repo, logger)

	caches := cache.NewManager()
	for _, c := range ledger.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, apphttp.Deps{
		Ledger: ledger,
		Inbox:  inbox,
		Repo:   repo,
		Broker: broker,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if notifier != nil {
		registry := services.DefaultDuenessRegistry(cfg.DueSoonDays)
		due := worker.NewDueWorker(services.NewDueNotifier(repo, notifier, registry, logger), cfg.NotifySchedule, location, logger)
		g.Go(func() error { return due.Start(ctx) })
	} else {
		logger.Info("Due notifier disabled, no broker configured")
	}

	return g.Wait()
}
