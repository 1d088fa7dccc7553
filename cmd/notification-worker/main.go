package main

import (
	"fmt"

	"funetec/internal/cli"
	"funetec/internal/config"
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
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "notification-worker stopped with error", err)
	}
	logger.Info("notification-worker stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting notification-worker", log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue)

	repo, err := cli.OpenRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := cli.ConnectBroker(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("AMQP_URL is required")
	}
	defer client.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	w := worker.NewNotificationWorker(client, services.NewInbox(repo, logger), logger)
	return w.Start(ctx)
}
