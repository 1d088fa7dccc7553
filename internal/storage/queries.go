package storage

import (
	"context"
	"database/sql"
)

const contractColumns = `code, seq, year, counterparty, tax_id, person_type, description,
	total_cents, start_date, end_date, installment_count, first_due_date, status,
	paid_cents, pending_cents, net_cents, version, archived_at,
	created_by, updated_by, created_at, updated_at`

const installmentColumns = `id, contract_code, sequence, due_date, face_cents, paid_cents,
	payment_date, notes, status, created_at, updated_at`

const installmentColumnsI = `i.id, i.contract_code, i.sequence, i.due_date, i.face_cents, i.paid_cents,
	i.payment_date, i.notes, i.status, i.created_at, i.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (Contract, error) {
	var c Contract
	err := row.Scan(
		&c.Code, &c.Seq, &c.Year, &c.Counterparty, &c.TaxID, &c.PersonType, &c.Description,
		&c.TotalCents, &c.StartDate, &c.EndDate, &c.InstallmentCount, &c.FirstDueDate, &c.Status,
		&c.PaidCents, &c.PendingCents, &c.NetCents, &c.Version, &c.ArchivedAt,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func scanInstallment(row rowScanner, extra ...interface{}) (Installment, error) {
	var i Installment
	dest := []interface{}{
		&i.ID, &i.ContractCode, &i.Sequence, &i.DueDate, &i.FaceCents, &i.PaidCents,
		&i.PaymentDate, &i.Notes, &i.Status, &i.CreatedAt, &i.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

func collectInstallments(rows *sql.Rows) ([]Installment, error) {
	defer rows.Close()
	var items []Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const maxContractSeq = `SELECT COALESCE(MAX(seq), 0) FROM contracts WHERE year = ?`

func (q *Queries) MaxContractSeq(ctx context.Context, year int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, maxContractSeq, year)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const createContract = `INSERT INTO contracts (` + contractColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateContract(ctx context.Context, c Contract) error {
	_, err := q.db.ExecContext(ctx, createContract,
		c.Code, c.Seq, c.Year, c.Counterparty, c.TaxID, c.PersonType, c.Description,
		c.TotalCents, c.StartDate, c.EndDate, c.InstallmentCount, c.FirstDueDate, c.Status,
		c.PaidCents, c.PendingCents, c.NetCents, c.Version, c.ArchivedAt,
		c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

const getContract = `SELECT ` + contractColumns + ` FROM contracts WHERE code = ?`

func (q *Queries) GetContract(ctx context.Context, code string) (Contract, error) {
	return scanContract(q.db.QueryRowContext(ctx, getContract, code))
}

const listContracts = `SELECT ` + contractColumns + ` FROM contracts
WHERE (? = 1 OR archived_at IS NULL)
ORDER BY year DESC, seq DESC`

func (q *Queries) ListContracts(ctx context.Context, includeArchived bool) ([]Contract, error) {
	flag := 0
	if includeArchived {
		flag = 1
	}
	rows, err := q.db.QueryContext(ctx, listContracts, flag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateContractStateParams struct {
	Code         string
	Status       string
	PaidCents    int64
	PendingCents int64
	NetCents     int64
	UpdatedBy    string
	UpdatedAt    string
	Version      int64
}

const updateContractState = `UPDATE contracts
SET status = ?, paid_cents = ?, pending_cents = ?, net_cents = ?,
    updated_by = ?, updated_at = ?, version = version + 1
WHERE code = ? AND version = ?`

// UpdateContractState returns the number of rows written; zero means the
// version no longer matches.
func (q *Queries) UpdateContractState(ctx context.Context, arg UpdateContractStateParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateContractState,
		arg.Status, arg.PaidCents, arg.PendingCents, arg.NetCents,
		arg.UpdatedBy, arg.UpdatedAt, arg.Code, arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ArchiveContractParams struct {
	Code       string
	ArchivedAt string
	UpdatedBy  string
	Version    int64
}

const archiveContract = `UPDATE contracts
SET archived_at = ?, updated_by = ?, updated_at = ?, version = version + 1
WHERE code = ? AND version = ? AND archived_at IS NULL`

func (q *Queries) ArchiveContract(ctx context.Context, arg ArchiveContractParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, archiveContract,
		arg.ArchivedAt, arg.UpdatedBy, arg.ArchivedAt, arg.Code, arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createInstallment = `INSERT INTO installments (
	contract_code, sequence, due_date, face_cents, paid_cents,
	payment_date, notes, status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateInstallment(ctx context.Context, i Installment) (int64, error) {
	row := q.db.QueryRowContext(ctx, createInstallment,
		i.ContractCode, i.Sequence, i.DueDate, i.FaceCents, i.PaidCents,
		i.PaymentDate, i.Notes, i.Status, i.CreatedAt, i.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getInstallment = `SELECT ` + installmentColumns + ` FROM installments WHERE id = ?`

func (q *Queries) GetInstallment(ctx context.Context, id int64) (Installment, error) {
	return scanInstallment(q.db.QueryRowContext(ctx, getInstallment, id))
}

const updateInstallment = `UPDATE installments
SET due_date = ?, paid_cents = ?, payment_date = ?, notes = ?, status = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateInstallment(ctx context.Context, i Installment) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateInstallment,
		i.DueDate, i.PaidCents, i.PaymentDate, i.Notes, i.Status, i.UpdatedAt, i.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteInstallmentsByContract = `DELETE FROM installments WHERE contract_code = ?`

func (q *Queries) DeleteInstallmentsByContract(ctx context.Context, code string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteInstallmentsByContract, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listInstallmentsByContract = `SELECT ` + installmentColumns + ` FROM installments
WHERE contract_code = ?
ORDER BY sequence`

func (q *Queries) ListInstallmentsByContract(ctx context.Context, code string) ([]Installment, error) {
	rows, err := q.db.QueryContext(ctx, listInstallmentsByContract, code)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

// Installments of contracts that are neither archived nor cancelled.
const listActiveInstallments = `SELECT ` + installmentColumnsI + `
FROM installments i
JOIN contracts c ON c.code = i.contract_code
WHERE c.archived_at IS NULL AND c.status != 'cancelled'
ORDER BY i.due_date, i.contract_code, i.sequence`

func (q *Queries) ListActiveInstallments(ctx context.Context) ([]Installment, error) {
	rows, err := q.db.QueryContext(ctx, listActiveInstallments)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

const listOpenInstallmentsDueBefore = `SELECT ` + installmentColumnsI + `
FROM installments i
JOIN contracts c ON c.code = i.contract_code
WHERE c.archived_at IS NULL AND c.status != 'cancelled'
  AND i.status IN ('pending', 'partially_paid')
  AND i.due_date < ?
ORDER BY i.due_date, i.contract_code, i.sequence`

func (q *Queries) ListOpenInstallmentsDueBefore(ctx context.Context, date string) ([]Installment, error) {
	rows, err := q.db.QueryContext(ctx, listOpenInstallmentsDueBefore, date)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

const listInstallmentsPaidBetween = `SELECT ` + installmentColumns + ` FROM installments
WHERE payment_date IS NOT NULL AND payment_date >= ? AND payment_date <= ?
ORDER BY payment_date, contract_code, sequence`

func (q *Queries) ListInstallmentsPaidBetween(ctx context.Context, from, to string) ([]Installment, error) {
	rows, err := q.db.QueryContext(ctx, listInstallmentsPaidBetween, from, to)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

const listPendingDueOn = `SELECT ` + installmentColumnsI + `, c.counterparty, c.tax_id
FROM installments i
JOIN contracts c ON c.code = i.contract_code
WHERE i.status = 'pending' AND i.due_date = ?
  AND c.archived_at IS NULL AND c.status != 'cancelled'
ORDER BY i.contract_code, i.sequence`

func (q *Queries) ListPendingDueOn(ctx context.Context, date string) ([]DueInstallmentRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingDueOn, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DueInstallmentRow
	for rows.Next() {
		var d DueInstallmentRow
		d.Installment, err = scanInstallment(rows, &d.Counterparty, &d.TaxID)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPayment = `INSERT INTO payments (
	id, installment_id, contract_code, amount_cents, paid_on, note, recorded_by, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePayment(ctx context.Context, p Payment) error {
	_, err := q.db.ExecContext(ctx, createPayment,
		p.ID, p.InstallmentID, p.ContractCode, p.AmountCents, p.PaidOn, p.Note, p.RecordedBy, p.RecordedAt,
	)
	return err
}

const paymentSelect = `SELECT p.id, p.installment_id, p.contract_code, i.sequence, p.amount_cents,
	p.paid_on, p.note, p.recorded_by, p.recorded_at
FROM payments p
JOIN installments i ON i.id = p.installment_id`

func (q *Queries) listPayments(ctx context.Context, query string, args ...interface{}) ([]Payment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.InstallmentID, &p.ContractCode, &p.Sequence, &p.AmountCents,
			&p.PaidOn, &p.Note, &p.RecordedBy, &p.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPaymentsBetween = paymentSelect + `
WHERE p.paid_on >= ? AND p.paid_on <= ?
ORDER BY p.paid_on, p.recorded_at`

func (q *Queries) ListPaymentsBetween(ctx context.Context, from, to string) ([]Payment, error) {
	return q.listPayments(ctx, listPaymentsBetween, from, to)
}

const listPaymentsByInstallment = paymentSelect + `
WHERE p.installment_id = ?
ORDER BY p.recorded_at`

func (q *Queries) ListPaymentsByInstallment(ctx context.Context, installmentID int64) ([]Payment, error) {
	return q.listPayments(ctx, listPaymentsByInstallment, installmentID)
}

const insertNotification = `INSERT OR IGNORE INTO notifications (
	id, kind, contract_code, installment_id, sequence, title, message, due_date, amount_cents, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertNotification returns 0 rows affected when the id is already stored.
func (q *Queries) InsertNotification(ctx context.Context, n Notification) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertNotification,
		n.ID, n.Kind, n.ContractCode, n.InstallmentID, n.Sequence, n.Title, n.Message, n.DueDate, n.AmountCents, n.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listNotifications = `SELECT id, kind, contract_code, installment_id, sequence, title, message,
	due_date, amount_cents, created_at, read_at
FROM notifications
WHERE (? = 0 OR read_at IS NULL)
ORDER BY created_at DESC, id
LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]Notification, error) {
	flag := 0
	if unreadOnly {
		flag = 1
	}
	rows, err := q.db.QueryContext(ctx, listNotifications, flag, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.Kind, &n.ContractCode, &n.InstallmentID, &n.Sequence, &n.Title, &n.Message,
			&n.DueDate, &n.AmountCents, &n.CreatedAt, &n.ReadAt,
		); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markNotificationRead = `UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ?`

func (q *Queries) MarkNotificationRead(ctx context.Context, id, readAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markNotificationRead, readAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
