package services

import (
	"context"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// savingsGoalService handles savings-goal business logic. Completed is never
// taken from callers; it is derived and written together with the amounts.
type savingsGoalService struct {
	ledger    *store.Ledger
	gate      *ConsistencyGate
	publisher events.Publisher
}

// NewSavingsGoalService creates a new SavingsGoalServicer.
func NewSavingsGoalService(ledger *store.Ledger, gate *ConsistencyGate, publisher events.Publisher) SavingsGoalServicer {
	return &savingsGoalService{ledger: ledger, gate: gate, publisher: publisher}
}

// CreateGoal creates a savings goal.
func (s *savingsGoalService) CreateGoal(
	ctx context.Context,
	userID, name string,
	targetAmount, currentAmount int64,
	targetDate *time.Time,
) (*models.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
	}
	if _, err := s.gate.GoalAmounts(currentAmount, targetAmount); err != nil {
		return nil, err
	}
	if targetDate != nil {
		d := targetDate.UTC()
		targetDate = &d
	}

	goal := &models.SavingsGoal{
		UserID:        userID,
		Name:          name,
		TargetAmount:  targetAmount,
		CurrentAmount: currentAmount,
		TargetDate:    targetDate,
		Completed:     models.IsComplete(currentAmount, targetAmount),
	}
	if err := s.ledger.Goals.Create(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// GetUserGoals returns a paginated list of the user's goals.
func (s *savingsGoalService) GetUserGoals(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.SavingsGoal], error) {
	return findPage(ctx, s.ledger.Goals, store.Eq("user_id", userID),
		[]store.Sort{{Field: "created_at"}, {Field: "id"}}, page)
}

// GetGoalByID returns a goal by ID if it belongs to the user.
func (s *savingsGoalService) GetGoalByID(ctx context.Context, userID, goalID string) (*models.SavingsGoal, error) {
	return findOwned(ctx, s.ledger.Goals, userID, goalID)
}

// UpdateGoal updates a goal's fields, recomputing completion when either amount changes.
func (s *savingsGoalService) UpdateGoal(ctx context.Context, userID, goalID string, update GoalUpdate) (*models.SavingsGoal, error) {
	return s.write(ctx, userID, goalID, func(goal *models.SavingsGoal) (map[string]any, error) {
		fields := make(map[string]any)
		if update.CurrentAmount != nil || update.TargetAmount != nil {
			current, target := goal.CurrentAmount, goal.TargetAmount
			if update.CurrentAmount != nil {
				current = *update.CurrentAmount
			}
			if update.TargetAmount != nil {
				target = *update.TargetAmount
			}
			amounts, err := s.gate.GoalAmounts(current, target)
			if err != nil {
				return nil, err
			}
			for k, v := range amounts {
				fields[k] = v
			}
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name cannot be empty")
			}
			fields["name"] = name
		}
		if update.TargetDate != nil {
			fields["target_date"] = update.TargetDate.UTC()
		}
		return fields, nil
	})
}

// Contribute adds delta (negative for a withdrawal) to the goal's current amount.
func (s *savingsGoalService) Contribute(ctx context.Context, userID, goalID string, delta int64) (*models.SavingsGoal, error) {
	if delta == 0 {
		return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "savings_goal", "amount", "non_zero")
	}
	return s.write(ctx, userID, goalID, func(goal *models.SavingsGoal) (map[string]any, error) {
		if delta > 0 && goal.CurrentAmount > math.MaxInt64-delta {
			return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "savings_goal", "amount", "overflow")
		}
		return s.gate.GoalAmounts(goal.CurrentAmount+delta, goal.TargetAmount)
	})
}

// write applies the fields computed by change under the goal's lock and a
// version compare-and-swap.
func (s *savingsGoalService) write(
	ctx context.Context,
	userID, goalID string,
	change func(goal *models.SavingsGoal) (map[string]any, error),
) (*models.SavingsGoal, error) {
	unlock := goalLocks.Lock(goalID)
	defer unlock()

	var before, after *models.SavingsGoal
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		var err error
		before, err = findOwned(ctx, tx.Goals, userID, goalID)
		if err != nil {
			return err
		}
		fields, err := change(before)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			after = before
			return nil
		}

		fields["version"] = gorm.Expr("version + 1")
		n, err := tx.Goals.UpdateWhere(ctx, store.And(
			store.Eq("id", goalID),
			store.Eq("version", before.Version),
		), fields)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.Detailed(apperrors.ErrConflict, "savings_goal", "version", "")
		}
		after, err = tx.Goals.FindUnique(ctx, goalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if after.Completed && !before.Completed {
		events.Emit(ctx, s.publisher, events.New(events.GoalCompleted, userID, goalID, map[string]any{
			"current_amount": after.CurrentAmount,
			"target_amount":  after.TargetAmount,
		}))
	}
	return after, nil
}

// DeleteGoal deletes a goal.
func (s *savingsGoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if _, err := s.GetGoalByID(ctx, userID, goalID); err != nil {
		return err
	}
	return s.ledger.Goals.Delete(ctx, goalID)
}
