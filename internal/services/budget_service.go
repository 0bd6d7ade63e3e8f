package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	ledger *store.Ledger
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(ledger *store.Ledger) BudgetServicer {
	return &budgetService{ledger: ledger}
}

func validTimeframe(tf models.BudgetTimeframe) bool {
	switch tf {
	case models.BudgetTimeframeWeekly, models.BudgetTimeframeMonthly, models.BudgetTimeframeYearly:
		return true
	}
	return false
}

// CreateBudget creates a new budget over [startDate, endDate).
func (s *budgetService) CreateBudget(
	ctx context.Context,
	userID, name string,
	amount int64,
	timeframe models.BudgetTimeframe,
	startDate, endDate time.Time,
) (*models.Budget, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if amount < 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "budget", "amount", "non_negative")
	}
	if !validTimeframe(timeframe) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "timeframe must be WEEKLY, MONTHLY or YEARLY")
	}
	if !endDate.After(startDate) {
		return nil, apperrors.ErrInvalidDateRange
	}

	budget := &models.Budget{
		UserID:    userID,
		Name:      name,
		Amount:    amount,
		Timeframe: timeframe,
		StartDate: startDate.UTC(),
		EndDate:   endDate.UTC(),
	}
	if err := s.ledger.Budgets.Create(ctx, budget); err != nil {
		return nil, err
	}
	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user, newest period first.
func (s *budgetService) GetUserBudgets(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	timeframe *models.BudgetTimeframe,
) (*pagination.PageResponse[models.Budget], error) {
	where := []store.Filter{store.Eq("user_id", userID)}
	if timeframe != nil {
		where = append(where, store.Eq("timeframe", *timeframe))
	}
	return findPage(ctx, s.ledger.Budgets, store.And(where...),
		[]store.Sort{{Field: "start_date", Desc: true}, {Field: "id"}}, page)
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	return findOwned(ctx, s.ledger.Budgets, userID, budgetID)
}

// UpdateBudget updates a budget's fields. Lowering the amount below what is
// already allocated fails with OVER_ALLOCATION.
func (s *budgetService) UpdateBudget(ctx context.Context, userID, budgetID string, update BudgetUpdate) (*models.Budget, error) {
	unlock := budgetLocks.Lock(budgetID)
	defer unlock()

	var out *models.Budget
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		budget, err := findOwned(ctx, tx.Budgets, userID, budgetID)
		if err != nil {
			return err
		}

		fields := make(map[string]any)
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name cannot be empty")
			}
			fields["name"] = name
		}
		if update.Timeframe != nil {
			if !validTimeframe(*update.Timeframe) {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "timeframe must be WEEKLY, MONTHLY or YEARLY")
			}
			fields["timeframe"] = *update.Timeframe
		}

		start, end := budget.StartDate, budget.EndDate
		if update.StartDate != nil {
			start = update.StartDate.UTC()
			fields["start_date"] = start
		}
		if update.EndDate != nil {
			end = update.EndDate.UTC()
			fields["end_date"] = end
		}
		if !end.After(start) {
			return apperrors.ErrInvalidDateRange
		}

		if update.Amount != nil {
			amount := *update.Amount
			if amount < 0 {
				return apperrors.Detailed(apperrors.ErrInvalidAmount, "budget", "amount", "non_negative")
			}
			allocated, err := tx.Allocations.SumInt64(ctx, store.Eq("budget_id", budgetID), "amount")
			if err != nil {
				return err
			}
			if amount < allocated {
				e := apperrors.Detailed(apperrors.ErrOverAllocation, "budget", "amount", "allocated_total")
				e.Message = fmt.Sprintf("budget amount %d is below the %d already allocated", amount, allocated)
				return e
			}
			fields["amount"] = amount
		}

		if len(fields) == 0 {
			out = budget
			return nil
		}
		if err := bumpBudgetVersion(ctx, tx, budgetID, budget.Version, fields); err != nil {
			return err
		}
		out, err = tx.Budgets.FindUnique(ctx, budgetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBudget deletes a budget together with its allocations.
func (s *budgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	if _, err := s.GetBudgetByID(ctx, userID, budgetID); err != nil {
		return err
	}
	return s.ledger.Budgets.Delete(ctx, budgetID)
}
