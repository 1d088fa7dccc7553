package main

import (
	"flag"
	"fmt"

	"funetec/internal/cli"
	"funetec/internal/config"
	"funetec/internal/log"
	"funetec/internal/services"
	"funetec/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single scan for today and exit")
	flag.Parse()

	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentNotifier)
	if err := run(cfg, logger, *once); err != nil {
		cli.Fatal(logger, "due-notifier stopped with error", err)
	}
}

func run(cfg *config.Config, logger *log.Logger, once bool) error {
	logger.Info("Starting due-notifier", log.FieldOperation, log.OpStartup, "once", once)

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	repo, err := cli.OpenRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Scans only publish, so a broker is required here.
	client, err := cli.ConnectBroker(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("AMQP_URL is required")
	}
	defer client.Close()

	scanner := services.NewDueNotifier(repo, client, services.DefaultDuenessRegistry(cfg.DueSoonDays), logger)
	w := worker.NewDueWorker(scanner, cfg.NotifySchedule, location, logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	if once {
		_, err := w.RunOnce(ctx)
		return err
	}
	return w.Start(ctx)
}
