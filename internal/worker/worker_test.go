package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funetec/internal/amqp"
	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/services"
)

type fakeScanner struct {
	mu    sync.Mutex
	dates []core.Date
	err   error
}

func (s *fakeScanner) Scan(_ context.Context, asOf core.Date) (services.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = append(s.dates, asOf)
	if s.err != nil {
		return services.ScanResult{}, s.err
	}
	return services.ScanResult{AsOf: asOf, Published: 2}, nil
}

func TestDueWorker_RunOnceUsesLocalDay(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	scanner := &fakeScanner{}
	w := NewDueWorker(scanner, "0 7 * * *", saoPaulo, log.Discard())
	// 02:00 UTC is still the previous evening in São Paulo
	w.now = func() time.Time { return time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC) }

	_, ok := w.LastRun()
	assert.False(t, ok)

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	require.Len(t, scanner.dates, 1)
	assert.Equal(t, "2025-01-09", scanner.dates[0].String())

	last, ok := w.LastRun()
	require.True(t, ok)
	assert.Equal(t, res, last)
}

func TestDueWorker_RunOnceError(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("database is locked")}
	w := NewDueWorker(scanner, "0 7 * * *", time.UTC, log.Discard())

	_, err := w.RunOnce(context.Background())
	assert.ErrorContains(t, err, "database is locked")
	_, ok := w.LastRun()
	assert.False(t, ok)
}

func TestDueWorker_StartRejectsBadSchedule(t *testing.T) {
	w := NewDueWorker(&fakeScanner{}, "whenever", time.UTC, log.Discard())
	assert.Error(t, w.Start(context.Background()))
}

func TestDueWorker_StartStopsWithContext(t *testing.T) {
	w := NewDueWorker(&fakeScanner{}, "@every 1h", time.UTC, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type fakeStore struct {
	seen map[string]bool
	err  error
}

func (s *fakeStore) Store(_ context.Context, evt *amqp.InstallmentEvent) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen[evt.ID] {
		return false, nil
	}
	s.seen[evt.ID] = true
	return true, nil
}

type fakeSource struct {
	events []amqp.InstallmentEvent
	errs   []error
}

func (s *fakeSource) ConsumeInstallmentEvents(ctx context.Context, handler func(context.Context, *amqp.InstallmentEvent) error) error {
	for i := range s.events {
		s.errs = append(s.errs, handler(ctx, &s.events[i]))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestNotificationWorker(t *testing.T) {
	evt := amqp.NewInstallmentEvent(amqp.EventDueSoon)
	evt.ContractCode = "0001/2025"
	evt.InstallmentID = 7

	source := &fakeSource{events: []amqp.InstallmentEvent{evt, evt}}
	store := &fakeStore{seen: map[string]bool{}}
	w := NewNotificationWorker(source, store, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Start(ctx))

	assert.Equal(t, []error{nil, nil}, source.errs, "duplicates are acknowledged")
	assert.Len(t, store.seen, 1)
}

func TestNotificationWorker_StoreFailureIsReturned(t *testing.T) {
	w := NewNotificationWorker(&fakeSource{}, &fakeStore{err: errors.New("disk I/O error")}, log.Discard())
	evt := amqp.NewInstallmentEvent(amqp.EventDueToday)
	assert.Error(t, w.HandleEvent(context.Background(), &evt))
}

type closedSource struct{}

func (closedSource) ConsumeInstallmentEvents(context.Context, func(context.Context, *amqp.InstallmentEvent) error) error {
	return errors.New("channel/connection is not open")
}

func TestNotificationWorker_ConsumeFailure(t *testing.T) {
	w := NewNotificationWorker(closedSource{}, &fakeStore{seen: map[string]bool{}}, log.Discard())
	assert.Error(t, w.Start(context.Background()))
}
