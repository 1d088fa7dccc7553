package services

import (
	"context"
	"fmt"

	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/storage"
)

// BatchFailure is one item of a batch operation that was not applied.
type BatchFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// BatchResult lists what a batch operation did per item. A failing item
// never stops the remaining ones.
type BatchResult struct {
	Succeeded    []int64        `json:"succeeded"`
	Failed       []BatchFailure `json:"failed"`
	TotalApplied core.Money     `json:"total_applied"`
}

func (r *BatchResult) fail(id int64, err error) {
	r.Failed = append(r.Failed, BatchFailure{ID: id, Reason: err.Error()})
}

// PayInFull settles the pending balance of each installment on paidOn. Each
// installment is paid in its own transaction.
func (s *LedgerService) PayInFull(ctx context.Context, actor core.Actor, ids []int64, paidOn core.Date) (BatchResult, error) {
	if err := actor.Validate(); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Succeeded: []int64{}, Failed: []BatchFailure{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.fail(id, err)
			continue
		}
		res, err := s.pay(ctx, actor, id, paidOn, "Pagamento integral", func(inst core.Installment) core.Money {
			return inst.Balance()
		})
		if err != nil {
			result.fail(id, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		result.TotalApplied = result.TotalApplied.Add(res.Payment.Amount)
	}

	s.logger.InfoContext(ctx, "Batch payment finished", log.NewFields().
		WithOperation(log.OpPayInFull).
		WithActor(actor.Label()).
		WithAmount(result.TotalApplied.Cents).
		ToSlice()...,
	)
	return result, nil
}

// PostponeInstallments moves the due date of each Pending installment days
// forward and records the change in its notes.
func (s *LedgerService) PostponeInstallments(ctx context.Context, actor core.Actor, ids []int64, days int) (BatchResult, error) {
	if err := actor.Validate(); err != nil {
		return BatchResult{}, err
	}
	if days <= 0 {
		return BatchResult{}, fmt.Errorf("%w: days must be positive", core.ErrInvalidDateRange)
	}

	result := BatchResult{Succeeded: []int64{}, Failed: []BatchFailure{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.fail(id, err)
			continue
		}
		if err := s.postpone(ctx, actor, id, days); err != nil {
			result.fail(id, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	if len(result.Succeeded) > 0 {
		s.invalidateReports()
	}
	s.logger.InfoContext(ctx, "Batch postpone finished",
		log.FieldOperation, log.OpPostpone,
		log.FieldActor, actor.Label(),
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *LedgerService) postpone(ctx context.Context, actor core.Actor, id int64, days int) error {
	return s.withInstallmentLock(ctx, id, func(code string) error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			inst, err := tx.Installment(ctx, id)
			if err != nil {
				return err
			}
			moved, err := inst.Postpone(days, s.Today())
			if err != nil {
				return err
			}
			moved.UpdatedAt = now
			if err := tx.SaveInstallment(ctx, moved); err != nil {
				return err
			}
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			_, err = s.recompute(ctx, tx, c, actor, now)
			return err
		})
	})
}
