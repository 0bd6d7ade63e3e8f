package services

import (
	"context"
	"errors"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

// ConsistencyGate holds the write-time checks shared by every write path.
// Each check runs on the caller's transaction so what it reads is what the
// write commits against.
type ConsistencyGate struct{}

// NewConsistencyGate creates a ConsistencyGate.
func NewConsistencyGate() *ConsistencyGate {
	return &ConsistencyGate{}
}

// RequireCategory loads categoryID for a row of entity owned by userID.
func (g *ConsistencyGate) RequireCategory(ctx context.Context, tx *store.Ledger, entity, userID, categoryID string) (*models.Category, error) {
	if categoryID == "" {
		return nil, apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "category_id", "required")
	}
	category, err := tx.Categories.FindUnique(ctx, categoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "category_id", "foreign_key")
		}
		return nil, err
	}
	if category.UserID != userID {
		return nil, apperrors.Detailed(apperrors.ErrCategoryMismatch, entity, "category_id", "same_owner")
	}
	return category, nil
}

// RequireBill loads billID for a row of entity owned by userID.
func (g *ConsistencyGate) RequireBill(ctx context.Context, tx *store.Ledger, entity, userID, billID string) (*models.Bill, error) {
	bill, err := tx.Bills.FindUnique(ctx, billID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "bill_id", "foreign_key")
		}
		return nil, err
	}
	if bill.UserID != userID {
		return nil, apperrors.Detailed(apperrors.ErrConstraintViolation, entity, "bill_id", "same_owner")
	}
	return bill, nil
}

// CheckTransaction validates a transaction as it will be written and returns
// its bill when one is linked.
func (g *ConsistencyGate) CheckTransaction(ctx context.Context, tx *store.Ledger, t *models.Transaction) (*models.Bill, error) {
	if t.Amount <= 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "transaction", "amount", "positive")
	}
	if !t.Type.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction type must be INCOME or EXPENSE")
	}
	if t.Date.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction date is required")
	}

	if _, err := g.RequireCategory(ctx, tx, "transaction", t.UserID, t.CategoryID); err != nil {
		return nil, err
	}
	if t.BillID == nil {
		return nil, nil
	}
	return g.RequireBill(ctx, tx, "transaction", t.UserID, *t.BillID)
}

// BillPaymentWarning flags a manual payment that would settle a due date past
// the next one, measured at the payment's date against the bill's other
// payments. Late payments for missed cycles and early payment of the next due
// date do not warn. The write is allowed; the caller returns the warning.
func (g *ConsistencyGate) BillPaymentWarning(ctx context.Context, tx *store.Ledger, bill *models.Bill, t *models.Transaction) (*Warning, error) {
	if bill == nil || bill.Autopay {
		return nil, nil
	}
	settlement, err := settleBill(ctx, tx, bill, t.Date, t.ID)
	if err != nil {
		return nil, err
	}
	if !settlement.overpaid() {
		return nil, nil
	}

	paidThrough := settlement.schedule.Occurrence(settlement.anchor, settlement.settled-1)
	logger.FromContext(ctx).Infow("duplicate bill payment recorded",
		"bill_id", bill.ID,
		"transaction_id", t.ID,
		"paid_through", paidThrough,
	)
	return &Warning{
		Code:    WarningDuplicateBillPayment,
		Message: "bill " + bill.Name + " is already paid through " + paidThrough.Format("2006-01-02"),
	}, nil
}

// GoalAmounts validates a goal's amounts and returns the column set that must
// be written together: both amounts and the completed flag derived from them.
func (g *ConsistencyGate) GoalAmounts(current, target int64) (map[string]any, error) {
	if target <= 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "savings_goal", "target_amount", "positive")
	}
	if current < 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "savings_goal", "current_amount", "non_negative")
	}
	return map[string]any{
		"current_amount": current,
		"target_amount":  target,
		"completed":      models.IsComplete(current, target),
	}, nil
}
