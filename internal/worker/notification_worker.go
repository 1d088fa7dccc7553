package worker

import (
	"context"
	"fmt"

	"funetec/internal/amqp"
	"funetec/internal/log"
)

// EventSource is satisfied by amqp.Client.
type EventSource interface {
	ConsumeInstallmentEvents(ctx context.Context, handler func(context.Context, *amqp.InstallmentEvent) error) error
}

// EventStore is satisfied by services.Inbox.
type EventStore interface {
	Store(ctx context.Context, evt *amqp.InstallmentEvent) (bool, error)
}

// NotificationWorker moves installment events from the queue into the
// notification inbox.
type NotificationWorker struct {
	source EventSource
	store  EventStore
	logger *log.Logger
}

func NewNotificationWorker(source EventSource, store EventStore, logger *log.Logger) *NotificationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &NotificationWorker{
		source: source,
		store:  store,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent stores one event. A returned error makes the consumer requeue
// the delivery; duplicates are acknowledged.
func (w *NotificationWorker) HandleEvent(ctx context.Context, evt *amqp.InstallmentEvent) error {
	fields := log.NewFields().
		WithOperation(log.OpStoreNotification).
		WithContract(evt.ContractCode).
		WithInstallment(evt.InstallmentID, evt.Sequence)

	stored, err := w.store.Store(ctx, evt)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to store notification", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("store event %s: %w", evt.ID, err)
	}
	if !stored {
		w.logger.DebugContext(ctx, "Duplicate event ignored", append(fields.ToSlice(), "event_id", evt.ID)...)
		return nil
	}
	w.logger.InfoContext(ctx, "Notification stored", append(fields.ToSlice(), "event_id", evt.ID, "kind", string(evt.Kind))...)
	return nil
}

// Start consumes until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Notification worker started")
	if err := w.source.ConsumeInstallmentEvents(ctx, w.HandleEvent); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume installment events: %w", err)
	}
	w.logger.Info("Notification worker stopped")
	return nil
}
