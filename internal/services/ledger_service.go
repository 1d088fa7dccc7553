package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funetec/internal/amqp"
	"funetec/internal/cache"
	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/storage"

	"github.com/google/uuid"
)

// Notifier publishes installment signals. amqp.Client implements it.
type Notifier interface {
	PublishInstallmentEvent(ctx context.Context, evt amqp.InstallmentEvent) error
}

// Options tunes a LedgerService. Zero values fall back to the defaults below.
type Options struct {
	Notifier       Notifier
	Logger         *log.Logger
	Location       *time.Location
	LockTimeout    time.Duration
	ReportCacheTTL time.Duration
	DueSoonDays    int
	Now            func() time.Time
}

const (
	defaultLockTimeout    = 5 * time.Second
	defaultReportCacheTTL = time.Minute
	defaultDueSoonDays    = 7
)

// LedgerService orchestrates contract and installment writes across SQLite
// and AMQP. Every write to a contract runs under that contract's lock and in
// a single transaction that also recomputes the contract aggregates.
type LedgerService struct {
	repo        *storage.SQLiteRepository
	notifier    Notifier
	logger      *log.Logger
	locks       *contractLocks
	location    *time.Location
	lockTimeout time.Duration
	soonDays    int
	now         func() time.Time

	agingCache   *cache.Loading[core.AgingReport]
	summaryCache *cache.Loading[core.LedgerSummary]
	caches       []cache.Cleaner
}

func NewLedgerService(repo *storage.SQLiteRepository, opts Options) *LedgerService {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = defaultReportCacheTTL
	}
	if opts.DueSoonDays <= 0 {
		opts.DueSoonDays = defaultDueSoonDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	aging := cache.NewLRUCache[core.AgingReport](64, opts.ReportCacheTTL)
	summary := cache.NewLRUCache[core.LedgerSummary](64, opts.ReportCacheTTL)

	return &LedgerService{
		repo:         repo,
		notifier:     opts.Notifier,
		logger:       opts.Logger.WithComponent(log.ComponentLedger),
		locks:        newContractLocks(),
		location:     opts.Location,
		lockTimeout:  opts.LockTimeout,
		soonDays:     opts.DueSoonDays,
		now:          opts.Now,
		agingCache:   cache.NewLoading[core.AgingReport](aging),
		summaryCache: cache.NewLoading[core.LedgerSummary](summary),
		caches:       []cache.Cleaner{aging, summary},
	}
}

// Caches exposes the report caches so a cache.Manager can expire them.
func (s *LedgerService) Caches() []cache.Cleaner {
	return s.caches
}

// Today is the current calendar day in the ledger's time zone.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now().In(s.location))
}

// PaymentResult is the state after one payment was applied.
type PaymentResult struct {
	Payment     core.Payment
	Installment core.Installment
	Contract    core.Contract
}

// ContractDetail is a contract with its schedule and the derived helpers the
// back office shows next to it.
type ContractDetail struct {
	Contract     core.Contract
	Installments []core.Installment
	PercentPaid  string
	HasOverdue   bool
	NextDue      *core.Installment
}

// CreateContract validates the input, assigns the next code of the current
// year and stores the contract with its generated schedule.
func (s *LedgerService) CreateContract(ctx context.Context, actor core.Actor, in core.NewContract) (ContractDetail, error) {
	if err := actor.Validate(); err != nil {
		return ContractDetail{}, err
	}
	if err := in.Validate(); err != nil {
		return ContractDetail{}, err
	}

	now := s.now().UTC()
	var (
		contract core.Contract
		items    []core.Installment
	)
	err := s.repo.InTx(ctx, func(tx *storage.Tx) error {
		code, err := tx.NextContractCode(ctx, s.Today().Year())
		if err != nil {
			return err
		}
		c, err := in.Build(code, actor, now)
		if err != nil {
			return err
		}
		if err := tx.InsertContract(ctx, c); err != nil {
			return err
		}
		schedule, err := core.GenerateInstallments(c)
		if err != nil {
			return err
		}
		stamp(schedule, now)
		if items, err = tx.InsertInstallments(ctx, schedule); err != nil {
			return err
		}
		contract, err = tx.SaveContractState(ctx, core.RecomputeContract(c, items))
		return err
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreateContract, actor, "", err)
		return ContractDetail{}, fmt.Errorf("create contract: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Contract created", log.NewFields().
		WithOperation(log.OpCreateContract).
		WithActor(actor.Label()).
		WithContract(contract.Code).
		WithAmount(contract.Total.Cents).
		ToSlice()...)
	return s.detail(contract, items), nil
}

// ApplyPayment records amount against one installment and recomputes its
// contract. Payments on installments of cancelled or archived contracts are
// rejected.
func (s *LedgerService) ApplyPayment(ctx context.Context, actor core.Actor, installmentID int64, amount core.Money, paidOn core.Date, note string) (PaymentResult, error) {
	res, err := s.pay(ctx, actor, installmentID, paidOn, note, func(core.Installment) core.Money { return amount })
	if err != nil {
		return PaymentResult{}, fmt.Errorf("apply payment: %w", err)
	}
	return res, nil
}

// pay applies the amount chosen by amountFor from the freshly read
// installment, all under the contract lock.
func (s *LedgerService) pay(ctx context.Context, actor core.Actor, installmentID int64, paidOn core.Date, note string, amountFor func(core.Installment) core.Money) (PaymentResult, error) {
	if err := actor.Validate(); err != nil {
		return PaymentResult{}, err
	}

	var res PaymentResult
	err := s.withInstallmentLock(ctx, installmentID, func(code string) error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			inst, err := tx.Installment(ctx, installmentID)
			if err != nil {
				return err
			}
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			if c.Status == core.ContractCancelled || c.ArchivedAt != nil {
				return fmt.Errorf("%w: contract %s is %s", core.ErrInstallmentNotPayable, c.Code, c.Status)
			}

			amount := amountFor(inst)
			updated, err := core.ApplyPayment(inst, amount, paidOn, note)
			if err != nil {
				return err
			}
			updated.UpdatedAt = now
			if err := tx.SaveInstallment(ctx, updated); err != nil {
				return err
			}

			payment := core.Payment{
				ID:            uuid.NewString(),
				InstallmentID: updated.ID,
				ContractCode:  updated.ContractCode,
				Sequence:      updated.Sequence,
				Amount:        amount,
				PaidOn:        paidOn,
				Note:          note,
				RecordedBy:    actor.Label(),
				RecordedAt:    now,
			}
			if err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}

			c, err = s.recompute(ctx, tx, c, actor, now)
			if err != nil {
				return err
			}
			res = PaymentResult{Payment: payment, Installment: updated, Contract: c}
			return nil
		})
	})
	if err != nil {
		s.logFailure(ctx, log.OpApplyPayment, actor, "", err, "installment_id", installmentID)
		return PaymentResult{}, err
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Payment applied", log.NewFields().
		WithOperation(log.OpApplyPayment).
		WithActor(actor.Label()).
		WithContract(res.Contract.Code).
		WithInstallment(res.Installment.ID, res.Installment.Sequence).
		WithAmount(res.Payment.Amount.Cents).
		ToSlice()...)
	s.publish(ctx, paymentEvent(res))
	return res, nil
}

// RegenerateInstallments discards the schedule of a contract and builds it
// again from the contract terms. It is refused once any installment received
// money or left Pending.
func (s *LedgerService) RegenerateInstallments(ctx context.Context, actor core.Actor, code string) ([]core.Installment, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var items []core.Installment
	err := s.withContractLock(ctx, code, func() error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			if c.Status.Closed() || c.ArchivedAt != nil {
				return fmt.Errorf("%w: contract %s is %s", core.ErrRegenerationBlocked, c.Code, c.Status)
			}
			existing, err := tx.Installments(ctx, code)
			if err != nil {
				return err
			}
			if err := core.CanRegenerate(existing); err != nil {
				return err
			}
			if _, err := tx.DeleteInstallments(ctx, code); err != nil {
				return err
			}
			schedule, err := core.GenerateInstallments(c)
			if err != nil {
				return err
			}
			stamp(schedule, now)
			if items, err = tx.InsertInstallments(ctx, schedule); err != nil {
				return err
			}
			_, err = s.recompute(ctx, tx, c, actor, now)
			return err
		})
	})
	if err != nil {
		s.logFailure(ctx, log.OpRegenerate, actor, code, err)
		return nil, fmt.Errorf("regenerate installments: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Installments regenerated", log.NewFields().
		WithOperation(log.OpRegenerate).
		WithActor(actor.Label()).
		WithContract(code).
		ToSlice()...)
	return items, nil
}

// CancelContract closes an Issued or In Progress contract and cancels its
// Pending installments. Partially paid installments keep their state.
func (s *LedgerService) CancelContract(ctx context.Context, actor core.Actor, code, reason string) (core.Contract, error) {
	if err := actor.Validate(); err != nil {
		return core.Contract{}, err
	}

	var contract core.Contract
	err := s.withContractLock(ctx, code, func() error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			if c, err = c.Cancel(); err != nil {
				return err
			}
			items, err := tx.Installments(ctx, code)
			if err != nil {
				return err
			}
			for _, inst := range items {
				if inst.Status != core.InstallmentPending {
					continue
				}
				cancelled, err := inst.Cancel(reason)
				if err != nil {
					return err
				}
				cancelled.UpdatedAt = now
				if err := tx.SaveInstallment(ctx, cancelled); err != nil {
					return err
				}
			}
			contract, err = s.recompute(ctx, tx, c, actor, now)
			return err
		})
	})
	if err != nil {
		s.logFailure(ctx, log.OpCancelContract, actor, code, err)
		return core.Contract{}, fmt.Errorf("cancel contract: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Contract cancelled", log.NewFields().
		WithOperation(log.OpCancelContract).
		WithActor(actor.Label()).
		WithContract(code).
		ToSlice()...)
	return contract, nil
}

// CancelInstallment cancels one Pending installment.
func (s *LedgerService) CancelInstallment(ctx context.Context, actor core.Actor, installmentID int64, reason string) (core.Installment, error) {
	if err := actor.Validate(); err != nil {
		return core.Installment{}, err
	}

	var cancelled core.Installment
	err := s.withInstallmentLock(ctx, installmentID, func(code string) error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			inst, err := tx.Installment(ctx, installmentID)
			if err != nil {
				return err
			}
			if cancelled, err = inst.Cancel(reason); err != nil {
				return err
			}
			cancelled.UpdatedAt = now
			if err := tx.SaveInstallment(ctx, cancelled); err != nil {
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
	if err != nil {
		s.logFailure(ctx, log.OpCancelInstallment, actor, "", err, "installment_id", installmentID)
		return core.Installment{}, fmt.Errorf("cancel installment: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Installment cancelled", log.NewFields().
		WithOperation(log.OpCancelInstallment).
		WithActor(actor.Label()).
		WithContract(cancelled.ContractCode).
		WithInstallment(cancelled.ID, cancelled.Sequence).
		ToSlice()...)
	return cancelled, nil
}

// AppendInstallment adds a late installment after the last sequence of an
// open contract. The contract total is not changed.
func (s *LedgerService) AppendInstallment(ctx context.Context, actor core.Actor, code string, face core.Money, due core.Date, note string) (core.Installment, error) {
	if err := actor.Validate(); err != nil {
		return core.Installment{}, err
	}

	var added core.Installment
	err := s.withContractLock(ctx, code, func() error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			if c.Status.Closed() || c.ArchivedAt != nil {
				return fmt.Errorf("%w: contract %s is %s", core.ErrInvalidTransition, c.Code, c.Status)
			}
			existing, err := tx.Installments(ctx, code)
			if err != nil {
				return err
			}
			inst, err := core.NextInstallment(code, existing, due, face)
			if err != nil {
				return err
			}
			inst.Notes = note
			inst.CreatedAt, inst.UpdatedAt = now, now
			stored, err := tx.InsertInstallments(ctx, []core.Installment{inst})
			if err != nil {
				return err
			}
			added = stored[0]
			_, err = s.recompute(ctx, tx, c, actor, now)
			return err
		})
	})
	if err != nil {
		s.logFailure(ctx, log.OpAppendInstallment, actor, code, err)
		return core.Installment{}, fmt.Errorf("append installment: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Installment appended", log.NewFields().
		WithOperation(log.OpAppendInstallment).
		WithActor(actor.Label()).
		WithContract(code).
		WithInstallment(added.ID, added.Sequence).
		WithAmount(added.FaceValue.Cents).
		ToSlice()...)
	return added, nil
}

// ArchiveContract hides a Completed or Cancelled contract from listings. Its
// installments and payments are kept.
func (s *LedgerService) ArchiveContract(ctx context.Context, actor core.Actor, code string) (core.Contract, error) {
	if err := actor.Validate(); err != nil {
		return core.Contract{}, err
	}

	var contract core.Contract
	err := s.withContractLock(ctx, code, func() error {
		now := s.now().UTC()
		return s.repo.InTx(ctx, func(tx *storage.Tx) error {
			c, err := tx.Contract(ctx, code)
			if err != nil {
				return err
			}
			if c.ArchivedAt != nil {
				return fmt.Errorf("%w: contract %s is already archived", core.ErrInvalidTransition, c.Code)
			}
			if !c.Status.Closed() {
				return fmt.Errorf("%w: only completed or cancelled contracts can be archived", core.ErrInvalidTransition)
			}
			c.UpdatedBy = actor.Label()
			contract, err = tx.ArchiveContract(ctx, c, now)
			return err
		})
	})
	if err != nil {
		s.logFailure(ctx, log.OpArchiveContract, actor, code, err)
		return core.Contract{}, fmt.Errorf("archive contract: %w", err)
	}

	s.invalidateReports()
	s.logger.InfoContext(ctx, "Contract archived", log.NewFields().
		WithOperation(log.OpArchiveContract).
		WithActor(actor.Label()).
		WithContract(code).
		ToSlice()...)
	return contract, nil
}

// GetContract returns a contract with its installments.
func (s *LedgerService) GetContract(ctx context.Context, code string) (ContractDetail, error) {
	reader := s.repo.Reader()
	c, err := reader.Contract(ctx, code)
	if err != nil {
		return ContractDetail{}, err
	}
	items, err := reader.Installments(ctx, code)
	if err != nil {
		return ContractDetail{}, err
	}
	return s.detail(c, items), nil
}

func (s *LedgerService) ListContracts(ctx context.Context, includeArchived bool) ([]core.Contract, error) {
	return s.repo.Reader().Contracts(ctx, includeArchived)
}

// PaymentHistory lists every payment applied to an installment, oldest first.
func (s *LedgerService) PaymentHistory(ctx context.Context, installmentID int64) ([]core.Payment, error) {
	reader := s.repo.Reader()
	if _, err := reader.Installment(ctx, installmentID); err != nil {
		return nil, err
	}
	return reader.Payments(ctx, installmentID)
}

// recompute derives the aggregates of c from its stored installments and
// writes them, failing if c was changed since it was read.
func (s *LedgerService) recompute(ctx context.Context, tx *storage.Tx, c core.Contract, actor core.Actor, now time.Time) (core.Contract, error) {
	items, err := tx.Installments(ctx, c.Code)
	if err != nil {
		return core.Contract{}, err
	}
	c = core.RecomputeContract(c, items)
	c.UpdatedBy = actor.Label()
	c.UpdatedAt = now
	return tx.SaveContractState(ctx, c)
}

func (s *LedgerService) withContractLock(ctx context.Context, code string, fn func() error) error {
	release, err := s.locks.acquire(ctx, code, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// withInstallmentLock resolves the contract of an installment and runs fn
// under that contract's lock. The owning contract of an installment never
// changes, so reading it before locking is safe.
func (s *LedgerService) withInstallmentLock(ctx context.Context, installmentID int64, fn func(code string) error) error {
	inst, err := s.repo.Reader().Installment(ctx, installmentID)
	if err != nil {
		return err
	}
	return s.withContractLock(ctx, inst.ContractCode, func() error {
		return fn(inst.ContractCode)
	})
}

func (s *LedgerService) detail(c core.Contract, items []core.Installment) ContractDetail {
	today := s.Today()
	d := ContractDetail{
		Contract:     c,
		Installments: items,
		PercentPaid:  c.PercentPaid().StringFixed(2),
		HasOverdue:   core.HasOverdue(items, today),
	}
	if next, ok := core.NextDue(items, today); ok {
		d.NextDue = &next
	}
	return d
}

// publish sends evt without failing the caller: the ledger write already
// committed.
func (s *LedgerService) publish(ctx context.Context, evt amqp.InstallmentEvent) {
	if s.notifier == nil {
		s.logger.DebugContext(ctx, "Notifier not configured, skipping event", "kind", evt.Kind)
		return
	}
	if err := s.notifier.PublishInstallmentEvent(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish installment event", log.NewFields().
			WithContract(evt.ContractCode).
			WithInstallment(evt.InstallmentID, evt.Sequence).
			WithError(err).
			WithErrorType(log.ErrorTypeNetwork).
			ToSlice()...)
	}
}

func (s *LedgerService) invalidateReports() {
	s.agingCache.Invalidate()
	s.summaryCache.Invalidate()
}

func (s *LedgerService) logFailure(ctx context.Context, op string, actor core.Actor, code string, err error, extra ...any) {
	fields := log.NewFields().
		WithOperation(op).
		WithActor(actor.Label()).
		WithError(err).
		WithErrorType(errorType(err))
	if code != "" {
		fields.WithContract(code)
	}
	args := append(fields.ToSlice(), extra...)
	if core.IsValidation(err) || errors.Is(err, core.ErrNotFound) {
		s.logger.InfoContext(ctx, "Ledger operation rejected", args...)
		return
	}
	s.logger.ErrorContext(ctx, "Ledger operation failed", args...)
}

func errorType(err error) string {
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConcurrentModification):
		return log.ErrorTypeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeDatabase
	}
}

func stamp(items []core.Installment, now time.Time) {
	for i := range items {
		items[i].CreatedAt = now
		items[i].UpdatedAt = now
	}
}

func paymentEvent(res PaymentResult) amqp.InstallmentEvent {
	evt := amqp.NewInstallmentEvent(amqp.EventPaymentRecorded)
	evt.ID = res.Payment.ID
	evt.ContractCode = res.Contract.Code
	evt.InstallmentID = res.Installment.ID
	evt.Sequence = res.Installment.Sequence
	evt.Counterparty = res.Contract.Counterparty
	evt.DueDate = res.Installment.DueDate.String()
	evt.AmountCents = res.Payment.Amount.Cents
	evt.Title = "Pagamento registrado"
	evt.Message = fmt.Sprintf("Contrato %s - %s", res.Contract.Code, res.Payment.Amount)
	return evt
}
