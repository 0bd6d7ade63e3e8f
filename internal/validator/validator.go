// Package validator registers fintrack's custom binding tags with gin.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"fintrack/internal/models"
	"fintrack/internal/money"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// enums maps each enum tag to the values its model type accepts.
var enums = map[string][]string{
	"transaction_type": values(models.TransactionTypeIncome, models.TransactionTypeExpense),
	"category_type":    values(models.CategoryTypeIncome, models.CategoryTypeExpense),
	"budget_timeframe": values(models.BudgetTimeframeWeekly, models.BudgetTimeframeMonthly, models.BudgetTimeframeYearly),
	"bill_frequency": values(models.BillFrequencyDaily, models.BillFrequencyWeekly, models.BillFrequencyBiweekly,
		models.BillFrequencyMonthly, models.BillFrequencyQuarterly, models.BillFrequencySemiannually, models.BillFrequencyAnnually),
	"symbol_position": values(models.SymbolBefore, models.SymbolAfter),
	"rounding_mode":   values(models.RoundHalfUp, models.RoundHalfEven, models.RoundDown, models.RoundUp),
	"theme":           values(models.ThemeLight, models.ThemeDark, models.ThemeSystem),
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("iso4217", func(fl validator.FieldLevel) bool {
		return money.IsCurrency(fl.Field().String())
	})
	_ = v.RegisterValidation("hex_color", func(fl validator.FieldLevel) bool {
		return hexColorRegex.MatchString(fl.Field().String())
	})
	for tag, allowed := range enums {
		_ = v.RegisterValidation(tag, oneOf(allowed))
	}
}

func values[T ~string](vs ...T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func oneOf(allowed []string) validator.Func {
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	return func(fl validator.FieldLevel) bool {
		return set[fl.Field().String()]
	}
}
