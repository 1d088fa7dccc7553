package core

import "fmt"

// SplitAmount divides total into n face values. Each gets floor(total/n)
// cents and the leftover cents go one each to the first installments, so the
// values sum to total exactly and never differ by more than one cent.
func SplitAmount(total Money, n int) ([]Money, error) {
	if n < 1 {
		return nil, ErrInvalidInstallmentCount
	}
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if total.Cents < int64(n) {
		return nil, fmt.Errorf("%w: %s cannot be split into %d installments", ErrInvalidInstallmentCount, total, n)
	}
	base := total.Cents / int64(n)
	rest := total.Cents % int64(n)

	out := make([]Money, n)
	for i := range out {
		out[i] = Cents(base)
		if int64(i) < rest {
			out[i].Cents++
		}
	}
	return out, nil
}

// DueDateFor returns the due date of installment seq (1-based). It is always
// computed from the first due date so month-end clamping never drifts.
func DueDateFor(first Date, seq int) Date {
	return first.AddMonths(seq - 1)
}

// GenerateInstallments builds the Pending schedule for c.
func GenerateInstallments(c Contract) ([]Installment, error) {
	values, err := SplitAmount(c.Total, c.InstallmentCount)
	if err != nil {
		return nil, err
	}
	if c.FirstDueDate.IsZero() {
		return nil, fmt.Errorf("%w: first due date is required", ErrInvalidDateRange)
	}
	out := make([]Installment, len(values))
	for i, v := range values {
		seq := i + 1
		out[i] = Installment{
			ContractCode: c.Code,
			Sequence:     seq,
			DueDate:      DueDateFor(c.FirstDueDate, seq),
			FaceValue:    v,
			Status:       InstallmentPending,
		}
	}
	return out, nil
}

// CanRegenerate reports whether the schedule may be discarded and rebuilt.
// Once any money was received, or any installment left Pending, the
// existing schedule is kept.
func CanRegenerate(installments []Installment) error {
	for _, inst := range installments {
		if inst.AmountPaid.Cents > 0 || inst.Status != InstallmentPending {
			return fmt.Errorf("%w: installment %d is %s", ErrRegenerationBlocked, inst.Sequence, inst.Status)
		}
	}
	return nil
}

// NextInstallment builds an extra Pending installment appended after the
// highest existing sequence.
func NextInstallment(code string, existing []Installment, due Date, face Money) (Installment, error) {
	if err := face.Validate(); err != nil {
		return Installment{}, err
	}
	if err := due.Validate(); err != nil {
		return Installment{}, fmt.Errorf("%w: due date: %v", ErrInvalidDateRange, err)
	}
	last := 0
	for _, inst := range existing {
		if inst.Sequence > last {
			last = inst.Sequence
		}
	}
	return Installment{
		ContractCode: code,
		Sequence:     last + 1,
		DueDate:      due,
		FaceValue:    face,
		Status:       InstallmentPending,
	}, nil
}
