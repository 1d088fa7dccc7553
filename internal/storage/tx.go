package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"funetec/internal/core"
)

// Tx exposes the ledger queries in domain types. Inside InTx every call
// shares one transaction; from Reader the calls hit the database directly.
type Tx struct {
	q *Queries
}

// NextContractCode returns the code following the highest sequence used in
// year. The write transaction serializes concurrent callers.
func (t *Tx) NextContractCode(ctx context.Context, year int) (core.ContractCode, error) {
	maxSeq, err := t.q.MaxContractSeq(ctx, int64(year))
	if err != nil {
		return core.ContractCode{}, fmt.Errorf("max contract sequence: %w", err)
	}
	return core.ContractCode{Seq: int(maxSeq), Year: year}.Next(), nil
}

func (t *Tx) InsertContract(ctx context.Context, c core.Contract) error {
	row, err := fromCoreContract(c)
	if err != nil {
		return err
	}
	if err := t.q.CreateContract(ctx, row); err != nil {
		return fmt.Errorf("insert contract %s: %w", c.Code, err)
	}
	return nil
}

func (t *Tx) Contract(ctx context.Context, code string) (core.Contract, error) {
	row, err := t.q.GetContract(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Contract{}, fmt.Errorf("contract %s: %w", code, core.ErrNotFound)
	}
	if err != nil {
		return core.Contract{}, fmt.Errorf("get contract %s: %w", code, err)
	}
	return toCoreContract(row), nil
}

func (t *Tx) Contracts(ctx context.Context, includeArchived bool) ([]core.Contract, error) {
	rows, err := t.q.ListContracts(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	out := make([]core.Contract, len(rows))
	for i, row := range rows {
		out[i] = toCoreContract(row)
	}
	return out, nil
}

// SaveContractState writes status and aggregates if c.Version still matches
// the stored row, and returns c with the incremented version.
func (t *Tx) SaveContractState(ctx context.Context, c core.Contract) (core.Contract, error) {
	n, err := t.q.UpdateContractState(ctx, UpdateContractStateParams{
		Code:         c.Code,
		Status:       string(c.Status),
		PaidCents:    c.Paid.Cents,
		PendingCents: c.Pending.Cents,
		NetCents:     c.Net.Cents,
		UpdatedBy:    c.UpdatedBy,
		UpdatedAt:    formatTimestamp(c.UpdatedAt),
		Version:      c.Version,
	})
	if err != nil {
		return core.Contract{}, fmt.Errorf("update contract %s: %w", c.Code, err)
	}
	if n == 0 {
		return core.Contract{}, fmt.Errorf("contract %s at version %d: %w", c.Code, c.Version, core.ErrConcurrentModification)
	}
	c.Version++
	return c, nil
}

func (t *Tx) ArchiveContract(ctx context.Context, c core.Contract, at time.Time) (core.Contract, error) {
	n, err := t.q.ArchiveContract(ctx, ArchiveContractParams{
		Code:       c.Code,
		ArchivedAt: formatTimestamp(at),
		UpdatedBy:  c.UpdatedBy,
		Version:    c.Version,
	})
	if err != nil {
		return core.Contract{}, fmt.Errorf("archive contract %s: %w", c.Code, err)
	}
	if n == 0 {
		return core.Contract{}, fmt.Errorf("contract %s at version %d: %w", c.Code, c.Version, core.ErrConcurrentModification)
	}
	c.Version++
	c.ArchivedAt = &at
	c.UpdatedAt = at
	return c, nil
}

func (t *Tx) Installment(ctx context.Context, id int64) (core.Installment, error) {
	row, err := t.q.GetInstallment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, fmt.Errorf("installment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return toCoreInstallment(row), nil
}

func (t *Tx) Installments(ctx context.Context, code string) ([]core.Installment, error) {
	rows, err := t.q.ListInstallmentsByContract(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list installments of %s: %w", code, err)
	}
	return toCoreInstallments(rows), nil
}

// InsertInstallments stores new installments and returns them with their ids.
func (t *Tx) InsertInstallments(ctx context.Context, items []core.Installment) ([]core.Installment, error) {
	out := make([]core.Installment, len(items))
	for i, inst := range items {
		id, err := t.q.CreateInstallment(ctx, fromCoreInstallment(inst))
		if err != nil {
			return nil, fmt.Errorf("insert installment %d of %s: %w", inst.Sequence, inst.ContractCode, err)
		}
		inst.ID = id
		out[i] = inst
	}
	return out, nil
}

func (t *Tx) SaveInstallment(ctx context.Context, inst core.Installment) error {
	n, err := t.q.UpdateInstallment(ctx, fromCoreInstallment(inst))
	if err != nil {
		return fmt.Errorf("update installment %d: %w", inst.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("installment %d: %w", inst.ID, core.ErrNotFound)
	}
	return nil
}

func (t *Tx) DeleteInstallments(ctx context.Context, code string) (int64, error) {
	n, err := t.q.DeleteInstallmentsByContract(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("delete installments of %s: %w", code, err)
	}
	return n, nil
}

func (t *Tx) InsertPayment(ctx context.Context, p core.Payment) error {
	err := t.q.CreatePayment(ctx, Payment{
		ID:            p.ID,
		InstallmentID: p.InstallmentID,
		ContractCode:  p.ContractCode,
		AmountCents:   p.Amount.Cents,
		PaidOn:        p.PaidOn.String(),
		Note:          p.Note,
		RecordedBy:    p.RecordedBy,
		RecordedAt:    formatTimestamp(p.RecordedAt),
	})
	if err != nil {
		return fmt.Errorf("insert payment for installment %d: %w", p.InstallmentID, err)
	}
	return nil
}

// ActiveInstallments lists installments of contracts that are neither
// archived nor cancelled.
func (t *Tx) ActiveInstallments(ctx context.Context) ([]core.Installment, error) {
	rows, err := t.q.ListActiveInstallments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active installments: %w", err)
	}
	return toCoreInstallments(rows), nil
}

// OverdueInstallments lists open installments due strictly before asOf.
func (t *Tx) OverdueInstallments(ctx context.Context, asOf core.Date) ([]core.Installment, error) {
	rows, err := t.q.ListOpenInstallmentsDueBefore(ctx, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list overdue installments: %w", err)
	}
	return toCoreInstallments(rows), nil
}

func (t *Tx) InstallmentsPaidBetween(ctx context.Context, from, to core.Date) ([]core.Installment, error) {
	rows, err := t.q.ListInstallmentsPaidBetween(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list installments paid between %s and %s: %w", from, to, err)
	}
	return toCoreInstallments(rows), nil
}

// DueInstallment pairs a pending installment with the counterparty it is owed by.
type DueInstallment struct {
	core.Installment
	Counterparty string
	TaxID        string
}

func (t *Tx) PendingDueOn(ctx context.Context, day core.Date) ([]DueInstallment, error) {
	rows, err := t.q.ListPendingDueOn(ctx, day.String())
	if err != nil {
		return nil, fmt.Errorf("list installments due on %s: %w", day, err)
	}
	out := make([]DueInstallment, len(rows))
	for i, row := range rows {
		out[i] = DueInstallment{
			Installment:  toCoreInstallment(row.Installment),
			Counterparty: row.Counterparty,
			TaxID:        row.TaxID,
		}
	}
	return out, nil
}

func (t *Tx) PaymentsBetween(ctx context.Context, from, to core.Date) ([]core.Payment, error) {
	rows, err := t.q.ListPaymentsBetween(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list payments between %s and %s: %w", from, to, err)
	}
	out := make([]core.Payment, len(rows))
	for i, row := range rows {
		out[i] = toCorePayment(row)
	}
	return out, nil
}

func (t *Tx) Payments(ctx context.Context, installmentID int64) ([]core.Payment, error) {
	rows, err := t.q.ListPaymentsByInstallment(ctx, installmentID)
	if err != nil {
		return nil, fmt.Errorf("list payments of installment %d: %w", installmentID, err)
	}
	out := make([]core.Payment, len(rows))
	for i, row := range rows {
		out[i] = toCorePayment(row)
	}
	return out, nil
}

// InsertNotification stores n unless a notification with the same id exists.
// It reports whether a row was written.
func (t *Tx) InsertNotification(ctx context.Context, n core.Notification) (bool, error) {
	affected, err := t.q.InsertNotification(ctx, Notification{
		ID:            n.ID,
		Kind:          n.Kind,
		ContractCode:  n.ContractCode,
		InstallmentID: n.InstallmentID,
		Sequence:      int64(n.Sequence),
		Title:         n.Title,
		Message:       n.Message,
		DueDate:       n.DueDate.String(),
		AmountCents:   n.Amount.Cents,
		CreatedAt:     formatTimestamp(n.CreatedAt),
	})
	if err != nil {
		return false, fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return affected > 0, nil
}

func (t *Tx) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]core.Notification, error) {
	rows, err := t.q.ListNotifications(ctx, unreadOnly, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]core.Notification, len(rows))
	for i, row := range rows {
		out[i] = toCoreNotification(row)
	}
	return out, nil
}

// MarkNotificationRead keeps the first read time when called twice.
func (t *Tx) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	n, err := t.q.MarkNotificationRead(ctx, id, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
	}
	return nil
}
