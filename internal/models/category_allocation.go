package models

// CategoryAllocation is the planned portion of a budget assigned to one category.
// At most one allocation exists per (budget, category).
type CategoryAllocation struct {
	Base
	Amount     int64  `gorm:"type:bigint;not null" json:"amount"`
	BudgetID   string `gorm:"type:uuid;not null;uniqueIndex:idx_allocations_budget_category" json:"budget_id"`
	CategoryID string `gorm:"type:uuid;not null;uniqueIndex:idx_allocations_budget_category;index" json:"category_id"`
}
