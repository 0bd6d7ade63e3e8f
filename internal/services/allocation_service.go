package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

// allocationService keeps the sum of a budget's category allocations at or
// below the budget amount.
//
// Every write holds the budget's in-process lock and runs in one database
// transaction that ends with a compare-and-swap on budgets.version, so a
// writer in another process that changed the budget in between makes this
// one fail with CONFLICT instead of both passing the sum check.
type allocationService struct {
	ledger    *store.Ledger
	publisher events.Publisher
}

// NewAllocationService creates a new AllocationServicer.
func NewAllocationService(ledger *store.Ledger, publisher events.Publisher) AllocationServicer {
	return &allocationService{ledger: ledger, publisher: publisher}
}

// bumpBudgetVersion advances the budget's version if it still equals seen.
func bumpBudgetVersion(ctx context.Context, tx *store.Ledger, budgetID string, seen int64, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["version"] = gorm.Expr("version + 1")

	n, err := tx.Budgets.UpdateWhere(ctx, store.And(store.Eq("id", budgetID), store.Eq("version", seen)), fields)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.Detailed(apperrors.ErrConflict, "budget", "version", "")
	}
	return nil
}

// UpsertAllocation sets the amount of budgetID assigned to categoryID.
func (s *allocationService) UpsertAllocation(ctx context.Context, budgetID, categoryID string, amount int64) (*models.CategoryAllocation, error) {
	if amount < 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "category_allocation", "amount", "non_negative")
	}

	unlock := budgetLocks.Lock(budgetID)
	defer unlock()
	unlockCategory := categoryLocks.Lock(categoryID)
	defer unlockCategory()

	var (
		out    *models.CategoryAllocation
		userID string
	)
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		budget, err := tx.Budgets.FindUnique(ctx, budgetID)
		if err != nil {
			return err
		}
		userID = budget.UserID

		category, err := tx.Categories.FindUnique(ctx, categoryID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.Detailed(apperrors.ErrConstraintViolation, "category_allocation", "category_id", "foreign_key")
			}
			return err
		}
		if category.UserID != budget.UserID {
			return apperrors.Detailed(apperrors.ErrCategoryMismatch, "category_allocation", "category_id", "same_owner")
		}

		others, err := tx.Allocations.SumInt64(ctx, store.And(
			store.Eq("budget_id", budgetID),
			store.Ne("category_id", categoryID),
		), "amount")
		if err != nil {
			return err
		}
		if others+amount > budget.Amount {
			e := apperrors.Detailed(apperrors.ErrOverAllocation, "category_allocation", "amount", "budget_amount")
			e.Message = fmt.Sprintf("allocations would total %d, above the budget amount %d", others+amount, budget.Amount)
			return e
		}

		existing, err := tx.Allocations.FindFirst(ctx, store.And(
			store.Eq("budget_id", budgetID),
			store.Eq("category_id", categoryID),
		))
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			out = &models.CategoryAllocation{BudgetID: budgetID, CategoryID: categoryID, Amount: amount}
			if err := tx.Allocations.Create(ctx, out); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			out, err = tx.Allocations.Update(ctx, existing.ID, map[string]any{"amount": amount})
			if err != nil {
				return err
			}
		}

		return bumpBudgetVersion(ctx, tx, budgetID, budget.Version, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debugw("allocation upserted", "budget_id", budgetID, "category_id", categoryID, "amount", amount)
	events.Emit(ctx, s.publisher, events.New(events.AllocationUpserted, userID, out.ID, map[string]any{
		"budget_id":   budgetID,
		"category_id": categoryID,
		"amount":      amount,
	}))
	return out, nil
}

// RemoveAllocation deletes the allocation of budgetID to categoryID. Removing
// an allocation that does not exist is a no-op.
func (s *allocationService) RemoveAllocation(ctx context.Context, budgetID, categoryID string) error {
	unlock := budgetLocks.Lock(budgetID)
	defer unlock()

	var (
		removed int64
		userID  string
	)
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		budget, err := tx.Budgets.FindUnique(ctx, budgetID)
		if err != nil {
			return err
		}
		userID = budget.UserID

		removed, err = tx.Allocations.DeleteWhere(ctx, store.And(
			store.Eq("budget_id", budgetID),
			store.Eq("category_id", categoryID),
		))
		if err != nil || removed == 0 {
			return err
		}
		return bumpBudgetVersion(ctx, tx, budgetID, budget.Version, nil)
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		events.Emit(ctx, s.publisher, events.New(events.AllocationRemoved, userID, budgetID, map[string]any{
			"budget_id":   budgetID,
			"category_id": categoryID,
		}))
	}
	return nil
}

// TotalAllocated returns the sum of the budget's allocation amounts.
func (s *allocationService) TotalAllocated(ctx context.Context, budgetID string) (int64, error) {
	if _, err := s.ledger.Budgets.FindUnique(ctx, budgetID); err != nil {
		return 0, err
	}
	return s.ledger.Allocations.SumInt64(ctx, store.Eq("budget_id", budgetID), "amount")
}

// ListAllocations returns the budget's allocations in creation order.
func (s *allocationService) ListAllocations(ctx context.Context, budgetID string) ([]models.CategoryAllocation, error) {
	if _, err := s.ledger.Budgets.FindUnique(ctx, budgetID); err != nil {
		return nil, err
	}
	return s.ledger.Allocations.FindMany(ctx, store.Query{
		Where:   store.Eq("budget_id", budgetID),
		OrderBy: []store.Sort{{Field: "created_at"}, {Field: "id"}},
	})
}
