package core

import (
	"fmt"
	"strings"
	"time"
)

type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "pending"
	InstallmentCancelled     InstallmentStatus = "cancelled"
	InstallmentPartiallyPaid InstallmentStatus = "partially_paid"
	InstallmentPaid          InstallmentStatus = "paid"
)

const noteSeparator = "\n---\n"

type (
	Installment struct {
		ID           int64
		ContractCode string
		Sequence     int
		DueDate      Date
		FaceValue    Money
		AmountPaid   Money
		PaymentDate  Date // zero until the first payment
		Notes        string
		Status       InstallmentStatus
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Payment is the immutable record of one amount applied to an installment.
	Payment struct {
		ID            string
		InstallmentID int64
		ContractCode  string
		Sequence      int
		Amount        Money
		PaidOn        Date
		Note          string
		RecordedBy    string
		RecordedAt    time.Time
	}
)

// Label returns a human-readable "Status" in Portuguese, as shown to FUNETEC staff.
func (s InstallmentStatus) Label() string {
	switch s {
	case InstallmentPending:
		return "Pendente"
	case InstallmentCancelled:
		return "Cancelada"
	case InstallmentPartiallyPaid:
		return "Parcialmente Paga"
	case InstallmentPaid:
		return "Paga"
	default:
		return string(s)
	}
}

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentPending, InstallmentCancelled, InstallmentPartiallyPaid, InstallmentPaid:
		return true
	}
	return false
}

// Balance is what is still owed on the installment.
func (i Installment) Balance() Money {
	return i.FaceValue.Sub(i.AmountPaid)
}

// IsPayable reports whether payments may still be applied.
func (i Installment) IsPayable() bool {
	return i.Status == InstallmentPending || i.Status == InstallmentPartiallyPaid
}

// ApplyPayment adds amount to what was paid on the installment. Checks run in
// order: payable status, positive amount, amount within the pending balance.
// The input is never modified; on error the zero Installment is returned.
func ApplyPayment(i Installment, amount Money, paidOn Date, note string) (Installment, error) {
	if !i.IsPayable() {
		return Installment{}, fmt.Errorf("%w: installment %d of %s is %s",
			ErrInstallmentNotPayable, i.Sequence, i.ContractCode, i.Status)
	}
	if amount.Cents <= 0 {
		return Installment{}, ErrInvalidAmount
	}
	if amount.Cents > i.Balance().Cents {
		return Installment{}, &AmountExceedsBalanceError{Requested: amount, Remaining: i.Balance()}
	}
	if paidOn.IsZero() {
		return Installment{}, fmt.Errorf("%w: payment date is required", ErrInvalidDateRange)
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	i.PaymentDate = paidOn
	i.Notes = appendNote(i.Notes, note)
	i.Status = statusFor(i.AmountPaid, i.FaceValue)
	return i, nil
}

// Cancel moves a Pending installment to Cancelled. Any other state is
// rejected: once money was received the installment can only be completed.
func (i Installment) Cancel(reason string) (Installment, error) {
	if i.Status != InstallmentPending {
		return Installment{}, fmt.Errorf("%w: cannot cancel %s installment", ErrInvalidTransition, i.Status)
	}
	i.Status = InstallmentCancelled
	i.Notes = appendNote(i.Notes, strings.TrimSpace("Cancelada. "+reason))
	return i, nil
}

// Postpone shifts the due date of a Pending installment by days.
func (i Installment) Postpone(days int, on Date) (Installment, error) {
	if days <= 0 {
		return Installment{}, fmt.Errorf("%w: days must be positive", ErrInvalidDateRange)
	}
	if i.Status != InstallmentPending {
		return Installment{}, fmt.Errorf("%w: only pending installments can be postponed", ErrInvalidTransition)
	}
	i.DueDate = i.DueDate.AddDays(days)
	i.Notes = appendNote(i.Notes, fmt.Sprintf("Vencimento adiado em %d dias em %s", days, on))
	return i, nil
}

func statusFor(paid, face Money) InstallmentStatus {
	switch {
	case paid.Cents >= face.Cents:
		return InstallmentPaid
	case paid.Cents > 0:
		return InstallmentPartiallyPaid
	default:
		return InstallmentPending
	}
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + noteSeparator + note
}
