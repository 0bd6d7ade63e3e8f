package models

import "time"

// TransactionType says whether money came in or went out.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is INCOME or EXPENSE.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is one entry in the ledger of actual money movement. Amount is
// always positive; Type carries the direction. BillID links a manual bill
// payment to the bill it settles.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  string          `gorm:"type:uuid;not null;index" json:"category_id"`
	BillID      *string         `gorm:"type:uuid;index" json:"bill_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
}
