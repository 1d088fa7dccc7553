// This file implements the Strategy Pattern for due-date signals. Each
// signal kind has a checker that knows which due date it fires for on a given
// day and how to phrase it.

package services

import (
	"fmt"
	"sort"

	"funetec/internal/amqp"
	"funetec/internal/core"
)

// DuenessChecker decides which installments a signal fires for.
type DuenessChecker interface {
	// DueOn returns the due date whose Pending installments get the signal
	// when the scan runs on asOf.
	DueOn(asOf core.Date) core.Date
	// Title is the short text shown to staff.
	Title(daysUntil int) string
}

// DueSoonChecker fires a fixed number of days before the due date.
type DueSoonChecker struct {
	Days int
}

func (c DueSoonChecker) DueOn(asOf core.Date) core.Date {
	return asOf.AddDays(c.Days)
}

func (DueSoonChecker) Title(daysUntil int) string {
	return fmt.Sprintf("Parcela vence em %d dias", daysUntil)
}

// DueTodayChecker fires on the due date itself.
type DueTodayChecker struct{}

func (DueTodayChecker) DueOn(asOf core.Date) core.Date {
	return asOf
}

func (DueTodayChecker) Title(int) string {
	return "Parcela vence hoje"
}

// DuenessRegistry maps signal kinds to their checkers.
type DuenessRegistry map[amqp.EventKind]DuenessChecker

// DefaultDuenessRegistry fires soonDays before the due date and on the due
// date.
func DefaultDuenessRegistry(soonDays int) DuenessRegistry {
	return DuenessRegistry{
		amqp.EventDueSoon:  DueSoonChecker{Days: soonDays},
		amqp.EventDueToday: DueTodayChecker{},
	}
}

// Get returns the checker registered for kind.
func (r DuenessRegistry) Get(kind amqp.EventKind) (DuenessChecker, error) {
	checker, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("unknown signal kind: %s", kind)
	}
	return checker, nil
}

// Register adds or replaces the checker for kind.
func (r DuenessRegistry) Register(kind amqp.EventKind, checker DuenessChecker) {
	r[kind] = checker
}

// Kinds lists the registered kinds in a stable order.
func (r DuenessRegistry) Kinds() []amqp.EventKind {
	kinds := make([]amqp.EventKind, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
