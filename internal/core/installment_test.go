package core

import (
	"errors"
	"strings"
	"testing"
)

func pendingInstallment(face int64) Installment {
	return Installment{
		ID:           1,
		ContractCode: "0001/2025",
		Sequence:     1,
		DueDate:      NewDate(2025, 1, 10),
		FaceValue:    Cents(face),
		Status:       InstallmentPending,
	}
}

func TestApplyPayment_FullPayment(t *testing.T) {
	inst := pendingInstallment(50000)
	got, err := ApplyPayment(inst, Cents(50000), NewDate(2025, 1, 9), "pix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != InstallmentPaid || got.AmountPaid.Cents != 50000 {
		t.Fatalf("got status %s paid %d", got.Status, got.AmountPaid.Cents)
	}
	if !got.PaymentDate.Equal(NewDate(2025, 1, 9)) {
		t.Fatalf("payment date %s", got.PaymentDate)
	}
	if inst.Status != InstallmentPending || !inst.AmountPaid.IsZero() {
		t.Fatal("input installment was modified")
	}
}

func TestApplyPayment_Rejections(t *testing.T) {
	paid := pendingInstallment(50000)
	paid.AmountPaid = Cents(50000)
	paid.Status = InstallmentPaid

	cancelled := pendingInstallment(50000)
	cancelled.Status = InstallmentCancelled

	cases := []struct {
		name   string
		inst   Installment
		amount int64
		want   error
	}{
		{"paid installment", paid, 100, ErrInstallmentNotPayable},
		{"cancelled installment", cancelled, 100, ErrInstallmentNotPayable},
		{"overpayment", pendingInstallment(50000), 60000, ErrAmountExceedsBalance},
		{"zero amount", pendingInstallment(50000), 0, ErrInvalidAmount},
		{"negative amount", pendingInstallment(50000), -1, ErrInvalidAmount},
		// status is checked before the amount
		{"paid with zero amount", paid, 0, ErrInstallmentNotPayable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.inst
			_, err := ApplyPayment(tc.inst, Cents(tc.amount), NewDate(2025, 1, 9), "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.inst != before {
				t.Fatal("installment changed on rejection")
			}
		})
	}
}

func TestApplyPayment_ExceedsCarriesRemaining(t *testing.T) {
	inst := pendingInstallment(50000)
	inst.AmountPaid = Cents(20000)
	inst.Status = InstallmentPartiallyPaid

	_, err := ApplyPayment(inst, Cents(30001), NewDate(2025, 1, 9), "")
	var exceeds *AmountExceedsBalanceError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected *AmountExceedsBalanceError, got %T %v", err, err)
	}
	if exceeds.Remaining.Cents != 30000 || exceeds.Requested.Cents != 30001 {
		t.Fatalf("got remaining %d requested %d", exceeds.Remaining.Cents, exceeds.Requested.Cents)
	}
}

func TestApplyPayment_PartialThenFull(t *testing.T) {
	inst := pendingInstallment(50000)

	inst, err := ApplyPayment(inst, Cents(20000), NewDate(2025, 1, 5), "primeira parte")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Status != InstallmentPartiallyPaid {
		t.Fatalf("expected partially paid, got %s", inst.Status)
	}

	inst, err = ApplyPayment(inst, Cents(30000), NewDate(2025, 1, 8), "restante")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Status != InstallmentPaid || inst.Balance().Cents != 0 {
		t.Fatalf("expected paid with zero balance, got %s %d", inst.Status, inst.Balance().Cents)
	}
	if inst.Notes != "primeira parte\n---\nrestante" {
		t.Fatalf("notes: %q", inst.Notes)
	}
}

func TestInstallment_StatusNeverMovesBackward(t *testing.T) {
	rank := map[InstallmentStatus]int{
		InstallmentPending:       0,
		InstallmentPartiallyPaid: 1,
		InstallmentPaid:          2,
	}
	inst := pendingInstallment(1000)
	amounts := []int64{1, 0, 300, 2000, 500, 199, 1}
	prev := rank[inst.Status]
	for _, a := range amounts {
		next, err := ApplyPayment(inst, Cents(a), NewDate(2025, 1, 1), "")
		if err == nil {
			inst = next
		}
		if inst.AmountPaid.Cents < 0 || inst.AmountPaid.Cents > inst.FaceValue.Cents {
			t.Fatalf("balance invariant broken: paid %d face %d", inst.AmountPaid.Cents, inst.FaceValue.Cents)
		}
		if rank[inst.Status] < prev {
			t.Fatalf("status moved backward to %s", inst.Status)
		}
		prev = rank[inst.Status]
	}
	if inst.Status != InstallmentPaid {
		t.Fatalf("expected paid after all payments, got %s (paid %d)", inst.Status, inst.AmountPaid.Cents)
	}
	if _, err := inst.Cancel("late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid installment must not be cancellable, got %v", err)
	}
}

func TestInstallment_Cancel(t *testing.T) {
	got, err := pendingInstallment(1000).Cancel("acordo")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != InstallmentCancelled || got.Notes != "Cancelada. acordo" {
		t.Fatalf("got %s %q", got.Status, got.Notes)
	}
	partial := pendingInstallment(1000)
	partial.AmountPaid = Cents(1)
	partial.Status = InstallmentPartiallyPaid
	if _, err := partial.Cancel(""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestInstallment_Postpone(t *testing.T) {
	got, err := pendingInstallment(1000).Postpone(15, NewDate(2025, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !got.DueDate.Equal(NewDate(2025, 1, 25)) {
		t.Fatalf("due date %s", got.DueDate)
	}
	if !strings.Contains(got.Notes, "Vencimento adiado em 15 dias em 2025-01-02") {
		t.Fatalf("notes %q", got.Notes)
	}
	if _, err := pendingInstallment(1000).Postpone(0, NewDate(2025, 1, 2)); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}
