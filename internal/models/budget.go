package models

import "time"

// BudgetTimeframe represents the recurrence a budget is planned for
type BudgetTimeframe string

const (
	BudgetTimeframeWeekly  BudgetTimeframe = "WEEKLY"
	BudgetTimeframeMonthly BudgetTimeframe = "MONTHLY"
	BudgetTimeframeYearly  BudgetTimeframe = "YEARLY"
)

// Budget represents a spending plan over [StartDate, EndDate). Version is
// bumped on every change to the budget or its allocations and guards
// concurrent writers.
type Budget struct {
	Base
	UserID    string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string          `gorm:"not null" json:"name"`
	Amount    int64           `gorm:"type:bigint;not null" json:"amount"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	EndDate   time.Time       `gorm:"not null" json:"end_date"`
	Timeframe BudgetTimeframe `gorm:"not null" json:"timeframe"`
	Version   int64           `gorm:"not null;default:0" json:"version"`
}

// ActiveAt reports whether t falls inside the budget period.
func (b *Budget) ActiveAt(t time.Time) bool {
	return !t.Before(b.StartDate) && t.Before(b.EndDate)
}
