package models

import "time"

// SavingsGoal tracks progress toward a target amount. Completed is a cached
// projection of CurrentAmount >= TargetAmount and is only ever written together
// with the amounts.
type SavingsGoal struct {
	Base
	UserID        string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string     `gorm:"not null" json:"name"`
	TargetAmount  int64      `gorm:"type:bigint;not null" json:"target_amount"`
	CurrentAmount int64      `gorm:"type:bigint;not null;default:0" json:"current_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	Completed     bool       `gorm:"not null" json:"completed"`
	Version       int64      `gorm:"not null;default:0" json:"version"`
}

// IsComplete reports whether the given amounts satisfy the goal.
func IsComplete(current, target int64) bool {
	return current >= target
}
