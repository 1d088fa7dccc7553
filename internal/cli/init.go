// Package cli holds the start-up steps shared by cmd/funetec,
// cmd/due-notifier and cmd/notification-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"funetec/internal/amqp"
	"funetec/internal/config"
	"funetec/internal/log"
	"funetec/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger at the configured level and installs
// it as the slog default.
func SetupLogger(level, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(level)
	lc.Component = component
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// OpenRepository creates the database directory if needed, opens SQLite and
// applies pending migrations.
func OpenRepository(cfg *config.Config) (*storage.SQLiteRepository, error) {
	if dir := filepath.Dir(cfg.SQLiteDBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}
	repo, err := storage.OpenSQLiteRepository(cfg.SQLiteDBPath, cfg.SQLiteBusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLiteDBPath, err)
	}
	return repo, nil
}

// ConnectBroker connects to AMQP when configured. It returns nil and no
// error when AMQP_URL is empty.
func ConnectBroker(cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	return client, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}
