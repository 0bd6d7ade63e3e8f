// Package money renders integer minor-unit amounts for display using a
// user's currency preferences.
package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/models"
)

// minorUnits is the scale of every stored amount: values are cents.
const minorUnits = 2

// FromCents converts a stored amount to a decimal value in major units.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnits)
}

// Round rounds d to places using the given mode. Unknown modes round half up.
func Round(d decimal.Decimal, places int32, mode models.RoundingMode) decimal.Decimal {
	switch mode {
	case models.RoundHalfEven:
		return d.RoundBank(places)
	case models.RoundDown:
		return d.RoundDown(places)
	case models.RoundUp:
		return d.RoundUp(places)
	default:
		return d.Round(places)
	}
}

// Format renders cents as a currency string, e.g. "$1,234.50" or "1.234,50 €".
func Format(cents int64, f models.CurrencyFormat) string {
	places := int32(f.DecimalPlaces)
	if places < 0 {
		places = 0
	}

	d := Round(FromCents(cents), places, f.RoundingMode)
	negative := d.IsNegative()
	fixed := d.Abs().StringFixed(places)

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	b.WriteString(group(intPart, f.ThousandsSeparator))
	if places > 0 {
		b.WriteString(f.DecimalSeparator)
		b.WriteString(fracPart)
	}
	number := b.String()

	var out string
	if f.SymbolPosition == models.SymbolAfter {
		out = number + " " + f.CurrencySymbol
	} else {
		out = f.CurrencySymbol + number
	}
	if negative {
		return "-" + out
	}
	return out
}

// group inserts sep between every three digits from the right.
func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
