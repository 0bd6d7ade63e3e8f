package models

import "time"

// BillFrequency is the recurrence of a bill's due date
type BillFrequency string

const (
	BillFrequencyDaily        BillFrequency = "DAILY"
	BillFrequencyWeekly       BillFrequency = "WEEKLY"
	BillFrequencyBiweekly     BillFrequency = "BIWEEKLY"
	BillFrequencyMonthly      BillFrequency = "MONTHLY"
	BillFrequencyQuarterly    BillFrequency = "QUARTERLY"
	BillFrequencySemiannually BillFrequency = "SEMIANNUALLY"
	BillFrequencyAnnually     BillFrequency = "ANNUALLY"
)

// BillStatus is the derived state of a bill's current cycle.
type BillStatus string

const (
	BillStatusUpcoming BillStatus = "UPCOMING"
	BillStatusOverdue  BillStatus = "OVERDUE"
	BillStatusPaid     BillStatus = "PAID"
)

// Bill is a recurring obligation. DueDate anchors the cycle; later due dates
// are derived from Frequency.
type Bill struct {
	Base
	UserID     string        `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID string        `gorm:"type:uuid;not null;index" json:"category_id"`
	Name       string        `gorm:"not null" json:"name"`
	Amount     int64         `gorm:"type:bigint;not null" json:"amount"`
	DueDate    time.Time     `gorm:"not null" json:"due_date"`
	Frequency  BillFrequency `gorm:"not null" json:"frequency"`
	Autopay    bool          `gorm:"not null" json:"autopay"`
}
