package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractIssued     ContractStatus = "issued"
	ContractInProgress ContractStatus = "in_progress"
	ContractCompleted  ContractStatus = "completed"
	ContractCancelled  ContractStatus = "cancelled"
)

type (
	// ContractCode is the human-readable NNNN/YYYY identifier.
	ContractCode struct {
		Seq  int
		Year int
	}

	Contract struct {
		Code             string
		Counterparty     string
		TaxID            string
		PersonType       PersonType
		Description      string
		Total            Money
		StartDate        Date
		EndDate          Date
		InstallmentCount int
		FirstDueDate     Date
		Status           ContractStatus

		// Derived from the installments by RecomputeContract.
		Paid    Money
		Pending Money
		Net     Money

		Version    int64
		ArchivedAt *time.Time
		CreatedBy  string
		UpdatedBy  string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// NewContract carries what a user authors when creating a contract.
	NewContract struct {
		Counterparty     string
		TaxID            string
		Description      string
		Total            Money
		StartDate        Date
		EndDate          Date
		InstallmentCount int
		FirstDueDate     Date
	}
)

func (s ContractStatus) Label() string {
	switch s {
	case ContractIssued:
		return "Lançado"
	case ContractInProgress:
		return "Em andamento"
	case ContractCompleted:
		return "Finalizado"
	case ContractCancelled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// Closed reports whether no further transition is allowed.
func (s ContractStatus) Closed() bool {
	return s == ContractCompleted || s == ContractCancelled
}

func (c ContractCode) String() string {
	return fmt.Sprintf("%04d/%d", c.Seq, c.Year)
}

// Next returns the code following c within the same year.
func (c ContractCode) Next() ContractCode {
	return ContractCode{Seq: c.Seq + 1, Year: c.Year}
}

// ParseContractCode parses "0001/2025".
func ParseContractCode(s string) (ContractCode, error) {
	seqPart, yearPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || len(seqPart) < 4 || len(yearPart) != 4 {
		return ContractCode{}, fmt.Errorf("%w: %q", ErrInvalidContractCode, s)
	}
	seq, err := strconv.Atoi(seqPart)
	if err != nil || seq < 1 {
		return ContractCode{}, fmt.Errorf("%w: %q", ErrInvalidContractCode, s)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return ContractCode{}, fmt.Errorf("%w: %q", ErrInvalidContractCode, s)
	}
	return ContractCode{Seq: seq, Year: year}, nil
}

func (n NewContract) Validate() error {
	if strings.TrimSpace(n.Counterparty) == "" {
		return ErrEmptyCounterparty
	}
	if len(n.Counterparty) > 150 {
		return fmt.Errorf("%w: counterparty name exceeds 150 characters", ErrFieldTooLong)
	}
	if len(n.Description) > 500 {
		return fmt.Errorf("%w: description exceeds 500 characters", ErrFieldTooLong)
	}
	if _, _, err := NormalizeTaxID(n.TaxID); err != nil {
		return err
	}
	if err := n.Total.Validate(); err != nil {
		return err
	}
	if n.InstallmentCount < 1 {
		return ErrInvalidInstallmentCount
	}
	if n.Total.Cents < int64(n.InstallmentCount) {
		return fmt.Errorf("%w: %s cannot be split into %d installments", ErrInvalidInstallmentCount, n.Total, n.InstallmentCount)
	}
	if err := n.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: start date: %v", ErrInvalidDateRange, err)
	}
	if err := n.EndDate.Validate(); err != nil {
		return fmt.Errorf("%w: end date: %v", ErrInvalidDateRange, err)
	}
	if !n.EndDate.After(n.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidDateRange)
	}
	if err := n.FirstDueDate.Validate(); err != nil {
		return fmt.Errorf("%w: first due date: %v", ErrInvalidDateRange, err)
	}
	return nil
}

// Build turns validated input into an Issued contract with the given code.
func (n NewContract) Build(code ContractCode, actor Actor, now time.Time) (Contract, error) {
	if err := n.Validate(); err != nil {
		return Contract{}, err
	}
	taxID, kind, err := NormalizeTaxID(n.TaxID)
	if err != nil {
		return Contract{}, err
	}
	return Contract{
		Code:             code.String(),
		Counterparty:     strings.TrimSpace(n.Counterparty),
		TaxID:            taxID,
		PersonType:       kind,
		Description:      strings.TrimSpace(n.Description),
		Total:            n.Total,
		StartDate:        n.StartDate,
		EndDate:          n.EndDate,
		InstallmentCount: n.InstallmentCount,
		FirstDueDate:     n.FirstDueDate,
		Status:           ContractIssued,
		Pending:          n.Total,
		Net:              n.Total,
		Version:          1,
		CreatedBy:        actor.Label(),
		UpdatedBy:        actor.Label(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// RecomputeContract derives paid, pending, net and status from the
// installments. Completed and Cancelled are terminal and never revert, even
// if the paid total were to drop afterwards.
func RecomputeContract(c Contract, installments []Installment) Contract {
	var paid Money
	for _, inst := range installments {
		paid = paid.Add(inst.AmountPaid)
	}
	c.Paid = paid
	c.Pending = c.Total.Sub(paid)
	c.Net = c.Total

	if c.Status.Closed() {
		return c
	}
	switch {
	case paid.Cents >= c.Total.Cents:
		c.Status = ContractCompleted
	case paid.Cents > 0:
		c.Status = ContractInProgress
	}
	return c
}

// Cancel closes an Issued or In Progress contract.
func (c Contract) Cancel() (Contract, error) {
	if c.Status.Closed() {
		return Contract{}, fmt.Errorf("%w: contract %s is %s", ErrInvalidTransition, c.Code, c.Status)
	}
	c.Status = ContractCancelled
	return c, nil
}

// PercentPaid returns paid/total as a percentage rounded to two places.
func (c Contract) PercentPaid() decimal.Decimal {
	if c.Total.Cents <= 0 {
		return decimal.Zero
	}
	return c.Paid.Decimal().Div(c.Total.Decimal()).Mul(decimal.NewFromInt(100)).Round(2)
}

// HasOverdue reports whether any open installment is past due on asOf.
func HasOverdue(installments []Installment, asOf Date) bool {
	for _, inst := range installments {
		if Classify(inst, asOf).Kind == Overdue {
			return true
		}
	}
	return false
}

// NextDue returns the open installment with the earliest due date on or
// after asOf.
func NextDue(installments []Installment, asOf Date) (Installment, bool) {
	var (
		next  Installment
		found bool
	)
	for _, inst := range installments {
		if !inst.IsPayable() || inst.DueDate.Before(asOf) {
			continue
		}
		if !found || inst.DueDate.Before(next.DueDate) {
			next, found = inst, true
		}
	}
	return next, found
}
