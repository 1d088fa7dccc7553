package core

import "time"

// Notification is an installment signal kept for staff to read in the
// back-office inbox.
type Notification struct {
	ID            string
	Kind          string
	ContractCode  string
	InstallmentID int64
	Sequence      int
	Title         string
	Message       string
	DueDate       Date
	Amount        Money
	CreatedAt     time.Time
	ReadAt        *time.Time
}

func (n Notification) Read() bool {
	return n.ReadAt != nil
}
