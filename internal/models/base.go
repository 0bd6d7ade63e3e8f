package models

import (
	"time"

	"fintrack/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. Rows are hard-deleted; the
// ledger store applies an explicit cascade policy per relation instead of
// soft deletes.
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUIDv7 unless the caller set an ID.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Budget{},
		&CategoryAllocation{},
		&Bill{},
		&Transaction{},
		&SavingsGoal{},
		&AuditLog{},
	}
}

// Key returns the primary key.
func (b *Base) Key() string {
	return b.ID
}
