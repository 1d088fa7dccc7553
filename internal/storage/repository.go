package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"funetec/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Fixed width so that timestamps sort lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	dsn     string
	queries *Queries
}

// DSN builds the connection string used for every connection to dbPath.
// Write transactions take the database lock at BEGIN, and waiting for the
// lock is bounded by busyTimeout.
func DSN(dbPath string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate",
		dbPath, busyTimeout.Milliseconds())
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	return OpenSQLiteRepository(dbPath, 5*time.Second)
}

func OpenSQLiteRepository(dbPath string, busyTimeout time.Duration) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		dsn:     dsn,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn inside one write transaction. The transaction is committed
// when fn returns nil and rolled back otherwise. Lock contention and
// uniqueness collisions are reported as core.ErrConcurrentModification so
// callers can retry the whole operation from a fresh read.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(&Tx{q: r.queries.WithTx(sqlTx)}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return mapError(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Reader returns a Tx bound to the database handle for read-only queries
// outside a transaction.
func (r *SQLiteRepository) Reader() *Tx {
	return &Tx{q: r.queries}
}

// mapError translates driver errors into domain errors while keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrConcurrentModification) {
		return err
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch {
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", core.ErrConcurrentModification, err)
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", core.ErrConcurrentModification, err)
		}
	}
	return err
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func toCoreContract(c Contract) core.Contract {
	out := core.Contract{
		Code:             c.Code,
		Counterparty:     c.Counterparty,
		TaxID:            c.TaxID,
		PersonType:       core.PersonType(c.PersonType),
		Description:      c.Description,
		Total:            core.Cents(c.TotalCents),
		StartDate:        parseDate(c.StartDate),
		EndDate:          parseDate(c.EndDate),
		InstallmentCount: int(c.InstallmentCount),
		FirstDueDate:     parseDate(c.FirstDueDate),
		Status:           core.ContractStatus(c.Status),
		Paid:             core.Cents(c.PaidCents),
		Pending:          core.Cents(c.PendingCents),
		Net:              core.Cents(c.NetCents),
		Version:          c.Version,
		CreatedBy:        c.CreatedBy,
		UpdatedBy:        c.UpdatedBy,
		CreatedAt:        parseTimestamp(c.CreatedAt),
		UpdatedAt:        parseTimestamp(c.UpdatedAt),
	}
	if c.ArchivedAt.Valid {
		at := parseTimestamp(c.ArchivedAt.String)
		out.ArchivedAt = &at
	}
	return out
}

func fromCoreContract(c core.Contract) (Contract, error) {
	code, err := core.ParseContractCode(c.Code)
	if err != nil {
		return Contract{}, err
	}
	row := Contract{
		Code:             c.Code,
		Seq:              int64(code.Seq),
		Year:             int64(code.Year),
		Counterparty:     c.Counterparty,
		TaxID:            c.TaxID,
		PersonType:       string(c.PersonType),
		Description:      c.Description,
		TotalCents:       c.Total.Cents,
		StartDate:        c.StartDate.String(),
		EndDate:          c.EndDate.String(),
		InstallmentCount: int64(c.InstallmentCount),
		FirstDueDate:     c.FirstDueDate.String(),
		Status:           string(c.Status),
		PaidCents:        c.Paid.Cents,
		PendingCents:     c.Pending.Cents,
		NetCents:         c.Net.Cents,
		Version:          c.Version,
		CreatedBy:        c.CreatedBy,
		UpdatedBy:        c.UpdatedBy,
		CreatedAt:        formatTimestamp(c.CreatedAt),
		UpdatedAt:        formatTimestamp(c.UpdatedAt),
	}
	if c.ArchivedAt != nil {
		row.ArchivedAt = sql.NullString{String: formatTimestamp(*c.ArchivedAt), Valid: true}
	}
	return row, nil
}

func toCoreInstallment(i Installment) core.Installment {
	out := core.Installment{
		ID:           i.ID,
		ContractCode: i.ContractCode,
		Sequence:     int(i.Sequence),
		DueDate:      parseDate(i.DueDate),
		FaceValue:    core.Cents(i.FaceCents),
		AmountPaid:   core.Cents(i.PaidCents),
		Notes:        i.Notes,
		Status:       core.InstallmentStatus(i.Status),
		CreatedAt:    parseTimestamp(i.CreatedAt),
		UpdatedAt:    parseTimestamp(i.UpdatedAt),
	}
	if i.PaymentDate.Valid {
		out.PaymentDate = parseDate(i.PaymentDate.String)
	}
	return out
}

func fromCoreInstallment(i core.Installment) Installment {
	return Installment{
		ID:           i.ID,
		ContractCode: i.ContractCode,
		Sequence:     int64(i.Sequence),
		DueDate:      i.DueDate.String(),
		FaceCents:    i.FaceValue.Cents,
		PaidCents:    i.AmountPaid.Cents,
		PaymentDate:  nullDate(i.PaymentDate),
		Notes:        i.Notes,
		Status:       string(i.Status),
		CreatedAt:    formatTimestamp(i.CreatedAt),
		UpdatedAt:    formatTimestamp(i.UpdatedAt),
	}
}

func toCoreInstallments(rows []Installment) []core.Installment {
	out := make([]core.Installment, len(rows))
	for i, row := range rows {
		out[i] = toCoreInstallment(row)
	}
	return out
}

func toCorePayment(p Payment) core.Payment {
	return core.Payment{
		ID:            p.ID,
		InstallmentID: p.InstallmentID,
		ContractCode:  p.ContractCode,
		Sequence:      int(p.Sequence),
		Amount:        core.Cents(p.AmountCents),
		PaidOn:        parseDate(p.PaidOn),
		Note:          p.Note,
		RecordedBy:    p.RecordedBy,
		RecordedAt:    parseTimestamp(p.RecordedAt),
	}
}

func toCoreNotification(n Notification) core.Notification {
	out := core.Notification{
		ID:            n.ID,
		Kind:          n.Kind,
		ContractCode:  n.ContractCode,
		InstallmentID: n.InstallmentID,
		Sequence:      int(n.Sequence),
		Title:         n.Title,
		Message:       n.Message,
		DueDate:       parseDate(n.DueDate),
		Amount:        core.Cents(n.AmountCents),
		CreatedAt:     parseTimestamp(n.CreatedAt),
	}
	if n.ReadAt.Valid {
		at := parseTimestamp(n.ReadAt.String)
		out.ReadAt = &at
	}
	return out
}
