package services

import (
	"context"
	"fmt"

	"funetec/internal/core"
)

// AgingReport groups the open overdue installments of active contracts by
// days overdue on asOf. Results are cached until the next ledger write.
func (s *LedgerService) AgingReport(ctx context.Context, asOf core.Date) (core.AgingReport, error) {
	if err := asOf.Validate(); err != nil {
		return core.AgingReport{}, fmt.Errorf("%w: as of: %v", core.ErrInvalidDateRange, err)
	}
	return s.agingCache.Get(asOf.String(), func() (core.AgingReport, error) {
		items, err := s.repo.Reader().OverdueInstallments(ctx, asOf)
		if err != nil {
			return core.AgingReport{}, err
		}
		return core.BuildAgingReport(items, asOf), nil
	})
}

// Summary counts installments of active contracts that are overdue, due
// today, due within the configured window and paid.
func (s *LedgerService) Summary(ctx context.Context, asOf core.Date) (core.LedgerSummary, error) {
	if err := asOf.Validate(); err != nil {
		return core.LedgerSummary{}, fmt.Errorf("%w: as of: %v", core.ErrInvalidDateRange, err)
	}
	return s.summaryCache.Get(asOf.String(), func() (core.LedgerSummary, error) {
		items, err := s.repo.Reader().ActiveInstallments(ctx)
		if err != nil {
			return core.LedgerSummary{}, err
		}
		return core.Summarize(items, asOf, s.soonDays), nil
	})
}

func (s *LedgerService) InstallmentsByContract(ctx context.Context, code string) ([]core.Installment, error) {
	reader := s.repo.Reader()
	if _, err := reader.Contract(ctx, code); err != nil {
		return nil, err
	}
	return reader.Installments(ctx, code)
}

// InstallmentsPaidBetween lists installments whose last payment date falls
// in [from, to].
func (s *LedgerService) InstallmentsPaidBetween(ctx context.Context, from, to core.Date) ([]core.Installment, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.Reader().InstallmentsPaidBetween(ctx, from, to)
}

// PaymentsBetween lists every payment recorded with a payment date in
// [from, to].
func (s *LedgerService) PaymentsBetween(ctx context.Context, from, to core.Date) ([]core.Payment, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.Reader().PaymentsBetween(ctx, from, to)
}

func checkRange(from, to core.Date) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: from and to are required", core.ErrInvalidDateRange)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %s is before %s", core.ErrInvalidDateRange, to, from)
	}
	return nil
}
