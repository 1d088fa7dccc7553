package services

import (
	"context"
	"strings"
	"time"

	"funetec/internal/amqp"
	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/storage"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 500
)

// Inbox keeps installment signals for staff to read.
type Inbox struct {
	repo   *storage.SQLiteRepository
	logger *log.Logger
	now    func() time.Time
}

func NewInbox(repo *storage.SQLiteRepository, logger *log.Logger) *Inbox {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Inbox{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentNotifier),
		now:    time.Now,
	}
}

// Store saves evt as a notification. Redelivered events carry the same id and
// are ignored; Store reports whether a new notification was written.
func (b *Inbox) Store(ctx context.Context, evt *amqp.InstallmentEvent) (bool, error) {
	due, _ := core.ParseDate(evt.DueDate)
	created := evt.Timestamp
	if created.IsZero() {
		created = b.now()
	}
	n := core.Notification{
		ID:            evt.ID,
		Kind:          string(evt.Kind),
		ContractCode:  evt.ContractCode,
		InstallmentID: evt.InstallmentID,
		Sequence:      evt.Sequence,
		Title:         strings.TrimSpace(evt.Title),
		Message:       strings.TrimSpace(evt.Message),
		DueDate:       due,
		Amount:        core.Cents(evt.AmountCents),
		CreatedAt:     created,
	}

	var stored bool
	err := b.repo.InTx(ctx, func(tx *storage.Tx) error {
		var err error
		stored, err = tx.InsertNotification(ctx, n)
		return err
	})
	if err != nil {
		return false, err
	}
	if !stored {
		b.logger.DebugContext(ctx, "Duplicate notification ignored", "notification_id", n.ID)
	}
	return stored, nil
}

// List returns the newest notifications first. limit is clamped to
// [1, 500] and defaults to 50.
func (b *Inbox) List(ctx context.Context, unreadOnly bool, limit int) ([]core.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultInboxLimit
	case limit > maxInboxLimit:
		limit = maxInboxLimit
	}
	return b.repo.Reader().Notifications(ctx, unreadOnly, limit)
}

func (b *Inbox) MarkRead(ctx context.Context, id string) error {
	return b.repo.InTx(ctx, func(tx *storage.Tx) error {
		return tx.MarkNotificationRead(ctx, id, b.now())
	})
}
