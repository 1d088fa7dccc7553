package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDay              = errors.New("invalid day")
	ErrInvalidMonth            = errors.New("invalid month")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrInstallmentNotPayable   = errors.New("installment not payable")
	ErrAmountExceedsBalance    = errors.New("amount exceeds balance")
	ErrConcurrentModification  = errors.New("concurrent modification")

	ErrNotFound            = errors.New("not found")
	ErrInvalidTaxID        = errors.New("invalid tax id")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRegenerationBlocked = errors.New("installments already have payments")
	ErrInvalidContractCode = errors.New("invalid contract code")
	ErrEmptyCounterparty   = errors.New("empty counterparty name")
	ErrMissingActor        = errors.New("missing actor")
	ErrFieldTooLong        = errors.New("field too long")
)

// AmountExceedsBalanceError reports a payment larger than what is still owed
// on an installment. It matches ErrAmountExceedsBalance with errors.Is.
type AmountExceedsBalanceError struct {
	Requested Money
	Remaining Money
}

func (e *AmountExceedsBalanceError) Error() string {
	return fmt.Sprintf("amount %s exceeds remaining balance %s", e.Requested, e.Remaining)
}

func (e *AmountExceedsBalanceError) Unwrap() error {
	return ErrAmountExceedsBalance
}

// IsValidation reports whether err is a caller mistake detected before any
// write took place.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDay,
		ErrInvalidMonth,
		ErrInvalidAmount,
		ErrInvalidInstallmentCount,
		ErrInstallmentNotPayable,
		ErrAmountExceedsBalance,
		ErrInvalidTaxID,
		ErrInvalidDateRange,
		ErrInvalidTransition,
		ErrRegenerationBlocked,
		ErrInvalidContractCode,
		ErrEmptyCounterparty,
		ErrMissingActor,
		ErrFieldTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
