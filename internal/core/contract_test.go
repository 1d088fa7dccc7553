package core

import (
	"errors"
	"testing"
	"time"
)

func validNewContract() NewContract {
	return NewContract{
		Counterparty:     "Instituto de Pesquisa Ltda",
		TaxID:            "12.345.678/0001-95",
		Description:      "Serviços de consultoria",
		Total:            Cents(100000),
		StartDate:        NewDate(2025, 1, 1),
		EndDate:          NewDate(2025, 12, 31),
		InstallmentCount: 3,
		FirstDueDate:     NewDate(2025, 1, 10),
	}
}

func TestContractCode(t *testing.T) {
	code := ContractCode{Seq: 7, Year: 2025}
	if code.String() != "0007/2025" {
		t.Fatalf("got %s", code)
	}
	if code.Next().String() != "0008/2025" {
		t.Fatalf("next: %s", code.Next())
	}
	parsed, err := ParseContractCode("0042/2024")
	if err != nil || parsed != (ContractCode{Seq: 42, Year: 2024}) {
		t.Fatalf("parse: %+v %v", parsed, err)
	}
	parsed, err = ParseContractCode("12345/2025")
	if err != nil || parsed.Seq != 12345 {
		t.Fatalf("five digit sequence: %+v %v", parsed, err)
	}
	for _, bad := range []string{"", "42/2024", "0042-2024", "0000/2025", "00a1/2025", "0001/25"} {
		if _, err := ParseContractCode(bad); !errors.Is(err, ErrInvalidContractCode) {
			t.Errorf("%q: expected ErrInvalidContractCode, got %v", bad, err)
		}
	}
}

func TestNewContractValidate(t *testing.T) {
	if err := validNewContract().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*NewContract)
		want   error
	}{
		{"empty counterparty", func(n *NewContract) { n.Counterparty = "  " }, ErrEmptyCounterparty},
		{"bad tax id", func(n *NewContract) { n.TaxID = "123" }, ErrInvalidTaxID},
		{"zero total", func(n *NewContract) { n.Total = Cents(0) }, ErrInvalidAmount},
		{"no installments", func(n *NewContract) { n.InstallmentCount = 0 }, ErrInvalidInstallmentCount},
		{"fewer cents than installments", func(n *NewContract) { n.Total = Cents(2); n.InstallmentCount = 3 }, ErrInvalidInstallmentCount},
		{"end before start", func(n *NewContract) { n.EndDate = NewDate(2024, 12, 31) }, ErrInvalidDateRange},
		{"end equals start", func(n *NewContract) { n.EndDate = n.StartDate }, ErrInvalidDateRange},
		{"missing first due", func(n *NewContract) { n.FirstDueDate = Date{} }, ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := validNewContract()
			tc.mutate(&n)
			if err := n.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewContractBuild(t *testing.T) {
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	c, err := validNewContract().Build(ContractCode{Seq: 1, Year: 2025}, Actor{ID: "ana"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if c.Code != "0001/2025" || c.Status != ContractIssued {
		t.Fatalf("got %s %s", c.Code, c.Status)
	}
	if c.TaxID != "12345678000195" || c.PersonType != Organization {
		t.Fatalf("tax id %s %s", c.TaxID, c.PersonType)
	}
	if c.Pending != c.Total || !c.Paid.IsZero() || c.CreatedBy != "ana" {
		t.Fatalf("aggregates %+v", c)
	}
}

func TestRecomputeContract(t *testing.T) {
	base := Contract{Code: "0001/2025", Total: Cents(100000), Status: ContractIssued}
	insts := []Installment{
		{Sequence: 1, FaceValue: Cents(33334)},
		{Sequence: 2, FaceValue: Cents(33333)},
		{Sequence: 3, FaceValue: Cents(33333)},
	}

	got := RecomputeContract(base, insts)
	if got.Status != ContractIssued || got.Pending.Cents != 100000 || got.Net.Cents != 100000 {
		t.Fatalf("no payments: %+v", got)
	}

	insts[0].AmountPaid = Cents(50000 - 16666)
	insts[1].AmountPaid = Cents(16666)
	got = RecomputeContract(base, insts)
	if got.Status != ContractInProgress || got.Paid.Cents != 50000 || got.Pending.Cents != 50000 {
		t.Fatalf("partial: %+v", got)
	}

	insts[1].AmountPaid = Cents(33333)
	insts[2].AmountPaid = Cents(33333)
	got = RecomputeContract(got, insts)
	if got.Status != ContractCompleted || got.Pending.Cents != 0 {
		t.Fatalf("complete: %+v", got)
	}

	// Completed never reverts.
	insts[2].AmountPaid = Cents(0)
	got = RecomputeContract(got, insts)
	if got.Status != ContractCompleted {
		t.Fatalf("completed reverted to %s", got.Status)
	}

	cancelled := base
	cancelled.Status = ContractCancelled
	insts[2].AmountPaid = Cents(33333)
	if got := RecomputeContract(cancelled, insts); got.Status != ContractCancelled || got.Paid.Cents != 100000 {
		t.Fatalf("cancelled: %+v", got)
	}
}

func TestContractCancel(t *testing.T) {
	for _, s := range []ContractStatus{ContractIssued, ContractInProgress} {
		got, err := Contract{Status: s}.Cancel()
		if err != nil || got.Status != ContractCancelled {
			t.Fatalf("%s: %v %s", s, err, got.Status)
		}
	}
	for _, s := range []ContractStatus{ContractCompleted, ContractCancelled} {
		if _, err := (Contract{Status: s}).Cancel(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition, got %v", s, err)
		}
	}
}

func TestContractHelpers(t *testing.T) {
	c := Contract{Total: Cents(30000), Paid: Cents(10000)}
	if got := c.PercentPaid().String(); got != "33.33" {
		t.Fatalf("percent paid %s", got)
	}
	asOf := NewDate(2025, 3, 15)
	insts := []Installment{
		{Sequence: 1, DueDate: NewDate(2025, 1, 10), Status: InstallmentPaid},
		{Sequence: 2, DueDate: NewDate(2025, 2, 10), Status: InstallmentPartiallyPaid},
		{Sequence: 3, DueDate: NewDate(2025, 4, 10), Status: InstallmentPending},
		{Sequence: 4, DueDate: NewDate(2025, 3, 20), Status: InstallmentPending},
	}
	if !HasOverdue(insts, asOf) {
		t.Fatal("expected overdue")
	}
	next, ok := NextDue(insts, asOf)
	if !ok || next.Sequence != 4 {
		t.Fatalf("next due: %d %v", next.Sequence, ok)
	}
	if HasOverdue(insts[2:], asOf) {
		t.Fatal("future installments are not overdue")
	}
}
