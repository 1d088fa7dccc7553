package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what happened to an installment.
type EventKind string

const (
	EventDueSoon         EventKind = "due_soon"
	EventDueToday        EventKind = "due_today"
	EventPaymentRecorded EventKind = "payment_recorded"
)

// InstallmentEvent is the message published for installment signals. It
// carries enough context for a subscriber to notify without reading the
// ledger back.
type InstallmentEvent struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	ContractCode  string    `json:"contract_code"`
	InstallmentID int64     `json:"installment_id"`
	Sequence      int       `json:"sequence"`
	Counterparty  string    `json:"counterparty,omitempty"`
	DueDate       string    `json:"due_date"`
	AmountCents   int64     `json:"amount_cents"`
	DaysUntilDue  int       `json:"days_until_due"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewInstallmentEvent stamps a new event with a random id and the current time.
func NewInstallmentEvent(kind EventKind) InstallmentEvent {
	return InstallmentEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// RoutingKey is "installment.<kind>".
func (e InstallmentEvent) RoutingKey() string {
	return "installment." + string(e.Kind)
}

// ToJSON converts the message to JSON bytes
func (e InstallmentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// InstallmentEventFromJSON decodes and checks an event.
func InstallmentEventFromJSON(data []byte) (*InstallmentEvent, error) {
	var evt InstallmentEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(evt.ID); err != nil {
		return nil, fmt.Errorf("invalid event id %q: %w", evt.ID, err)
	}
	switch evt.Kind {
	case EventDueSoon, EventDueToday, EventPaymentRecorded:
	default:
		return nil, fmt.Errorf("unknown event kind %q", evt.Kind)
	}
	return &evt, nil
}
