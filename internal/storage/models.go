package storage

import "database/sql"

type Contract struct {
	Code             string
	Seq              int64
	Year             int64
	Counterparty     string
	TaxID            string
	PersonType       string
	Description      string
	TotalCents       int64
	StartDate        string
	EndDate          string
	InstallmentCount int64
	FirstDueDate     string
	Status           string
	PaidCents        int64
	PendingCents     int64
	NetCents         int64
	Version          int64
	ArchivedAt       sql.NullString
	CreatedBy        string
	UpdatedBy        string
	CreatedAt        string
	UpdatedAt        string
}

type Installment struct {
	ID           int64
	ContractCode string
	Sequence     int64
	DueDate      string
	FaceCents    int64
	PaidCents    int64
	PaymentDate  sql.NullString
	Notes        string
	Status       string
	CreatedAt    string
	UpdatedAt    string
}

type Payment struct {
	ID            string
	InstallmentID int64
	ContractCode  string
	Sequence      int64
	AmountCents   int64
	PaidOn        string
	Note          string
	RecordedBy    string
	RecordedAt    string
}

// DueInstallmentRow is an installment row joined with the contract fields needed
// to notify about it.
type DueInstallmentRow struct {
	Installment
	Counterparty string
	TaxID        string
}

type Notification struct {
	ID            string
	Kind          string
	ContractCode  string
	InstallmentID int64
	Sequence      int64
	Title         string
	Message       string
	DueDate       string
	AmountCents   int64
	CreatedAt     string
	ReadAt        sql.NullString
}
