package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funetec/internal/amqp"
	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/storage"

	"github.com/google/uuid"
)

// eventNamespace scopes the deterministic ids of due signals.
var eventNamespace = uuid.MustParse("5b0f6c0e-3f5e-4c1e-9d7a-1f3b2a9c8e40")

// ScanResult counts what one scan published.
type ScanResult struct {
	AsOf      core.Date `json:"as_of"`
	Published int       `json:"published"`
	Failed    int       `json:"failed"`
}

// DueNotifier emits signals for Pending installments that reach one of the
// registered due offsets.
type DueNotifier struct {
	repo     *storage.SQLiteRepository
	notifier Notifier
	registry DuenessRegistry
	logger   *log.Logger
	now      func() time.Time
}

func NewDueNotifier(repo *storage.SQLiteRepository, notifier Notifier, registry DuenessRegistry, logger *log.Logger) *DueNotifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DueNotifier{
		repo:     repo,
		notifier: notifier,
		registry: registry,
		logger:   logger.WithComponent(log.ComponentNotifier),
		now:      time.Now,
	}
}

// Scan publishes one signal per matching installment. Signal ids are derived
// from the kind, installment and due date, so running a scan twice on the
// same day publishes the same ids again and subscribers can drop the
// duplicates. Publish failures are counted and logged; only read failures
// abort the scan.
func (n *DueNotifier) Scan(ctx context.Context, asOf core.Date) (ScanResult, error) {
	if n.notifier == nil {
		return ScanResult{}, errors.New("due notifier: no notifier configured")
	}
	if err := asOf.Validate(); err != nil {
		return ScanResult{}, fmt.Errorf("%w: as of: %v", core.ErrInvalidDateRange, err)
	}

	result := ScanResult{AsOf: asOf}
	reader := n.repo.Reader()
	for _, kind := range n.registry.Kinds() {
		checker, err := n.registry.Get(kind)
		if err != nil {
			return result, err
		}
		day := checker.DueOn(asOf)
		items, err := reader.PendingDueOn(ctx, day)
		if err != nil {
			return result, fmt.Errorf("scan %s: %w", kind, err)
		}
		for _, item := range items {
			evt := dueEvent(kind, checker, item, asOf, n.now())
			if err := n.notifier.PublishInstallmentEvent(ctx, evt); err != nil {
				result.Failed++
				n.logger.WarnContext(ctx, "Failed to publish due signal", log.NewFields().
					WithOperation(log.OpScanDue).
					WithContract(item.ContractCode).
					WithInstallment(item.ID, item.Sequence).
					WithError(err).
					WithErrorType(log.ErrorTypeNetwork).
					ToSlice()...)
				continue
			}
			result.Published++
		}
	}

	n.logger.InfoContext(ctx, "Due scan finished",
		log.FieldOperation, log.OpScanDue,
		log.FieldAsOf, asOf.String(),
		"published", result.Published,
		"failed", result.Failed,
	)
	return result, nil
}

func dueEvent(kind amqp.EventKind, checker DuenessChecker, item storage.DueInstallment, asOf core.Date, now time.Time) amqp.InstallmentEvent {
	days := asOf.DaysUntil(item.DueDate)
	key := fmt.Sprintf("%s:%d:%s", kind, item.ID, item.DueDate)
	return amqp.InstallmentEvent{
		ID:            uuid.NewSHA1(eventNamespace, []byte(key)).String(),
		Kind:          kind,
		ContractCode:  item.ContractCode,
		InstallmentID: item.ID,
		Sequence:      item.Sequence,
		Counterparty:  item.Counterparty,
		DueDate:       item.DueDate.String(),
		AmountCents:   item.Balance().Cents,
		DaysUntilDue:  days,
		Title:         checker.Title(days),
		Message:       fmt.Sprintf("Contrato %s - %s", item.ContractCode, item.Balance()),
		Timestamp:     now,
	}
}
