package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/services"
)

// Scanner is satisfied by services.DueNotifier.
type Scanner interface {
	Scan(ctx context.Context, asOf core.Date) (services.ScanResult, error)
}

// DueWorker runs the due-date scan on a cron schedule. Overlapping runs are
// skipped, never queued.
type DueWorker struct {
	scanner  Scanner
	schedule string
	location *time.Location
	timeout  time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun *services.ScanResult
}

func NewDueWorker(scanner Scanner, schedule string, location *time.Location, logger *log.Logger) *DueWorker {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &DueWorker{
		scanner:  scanner,
		schedule: schedule,
		location: location,
		timeout:  5 * time.Minute,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// RunOnce scans for the current day in the worker's time zone.
func (w *DueWorker) RunOnce(ctx context.Context) (services.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	asOf := core.DateOf(w.now().In(w.location))
	start := time.Now()
	res, err := w.scanner.Scan(ctx, asOf)
	if err != nil {
		w.logger.ErrorContext(ctx, "Due scan failed", log.NewFields().
			WithOperation(log.OpScanDue).
			WithError(err).
			ToSlice()...)
		return res, fmt.Errorf("due scan %s: %w", asOf, err)
	}

	w.mu.Lock()
	w.lastRun = &res
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Due scan completed",
		log.FieldOperation, log.OpScanDue,
		log.FieldAsOf, asOf.String(),
		"published", res.Published,
		"failed", res.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// LastRun returns the result of the most recent successful scan.
func (w *DueWorker) LastRun() (services.ScanResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastRun == nil {
		return services.ScanResult{}, false
	}
	return *w.lastRun, true
}

// Start schedules the scan and blocks until ctx is cancelled, then waits for
// a running scan to finish.
func (w *DueWorker) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(w.location),
		cron.WithChain(
			cron.Recover(cronLogger{w.logger}),
			cron.SkipIfStillRunning(cronLogger{w.logger}),
		),
	)
	if _, err := c.AddFunc(w.schedule, func() {
		_, _ = w.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule due scan %q: %w", w.schedule, err)
	}

	w.logger.InfoContext(ctx, "Due worker started", "schedule", w.schedule, "location", w.location.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("Due worker stopped")
	return nil
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, log.FieldError, err)...)
}
