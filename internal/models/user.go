package models

// SymbolPosition controls where the currency symbol is rendered.
type SymbolPosition string

const (
	SymbolBefore SymbolPosition = "BEFORE"
	SymbolAfter  SymbolPosition = "AFTER"
)

// RoundingMode controls how amounts are rounded to the display precision.
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "HALF_UP"
	RoundHalfEven RoundingMode = "HALF_EVEN"
	RoundDown     RoundingMode = "DOWN"
	RoundUp       RoundingMode = "UP"
)

// Theme is the user's UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "LIGHT"
	ThemeDark   Theme = "DARK"
	ThemeSystem Theme = "SYSTEM"
)

// CurrencyFormat holds how a user wants monetary amounts displayed.
type CurrencyFormat struct {
	CurrencyCode       string         `gorm:"size:3;not null;default:'USD'" json:"currency_code"`
	CurrencySymbol     string         `gorm:"not null;default:'$'" json:"currency_symbol"`
	SymbolPosition     SymbolPosition `gorm:"not null;default:'BEFORE'" json:"symbol_position"`
	DecimalPlaces      int            `gorm:"not null;default:2" json:"decimal_places"`
	DecimalSeparator   string         `gorm:"not null;default:'.'" json:"decimal_separator"`
	ThousandsSeparator string         `gorm:"not null;default:','" json:"thousands_separator"`
	RoundingMode       RoundingMode   `gorm:"not null;default:'HALF_UP'" json:"rounding_mode"`
}

// DefaultCurrencyFormat is applied to every new user.
func DefaultCurrencyFormat() CurrencyFormat {
	return CurrencyFormat{
		CurrencyCode:       "USD",
		CurrencySymbol:     "$",
		SymbolPosition:     SymbolBefore,
		DecimalPlaces:      2,
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
		RoundingMode:       RoundHalfUp,
	}
}

// User represents the user model in the database
type User struct {
	Base
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `json:"name"`

	CurrencyFormat `gorm:"embedded"`

	EmailNotifications bool  `gorm:"not null" json:"email_notifications"`
	BillReminders      bool  `gorm:"not null" json:"bill_reminders"`
	BudgetAlerts       bool  `gorm:"not null" json:"budget_alerts"`
	Theme              Theme `gorm:"not null;default:'SYSTEM'" json:"theme"`
}
