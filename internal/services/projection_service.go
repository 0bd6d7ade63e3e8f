package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

// overviewConcurrency bounds the projections one Overview runs at once.
const overviewConcurrency = 4

// projectionService derives read-only views from the ledger. It never writes
// and never keeps results between calls.
type projectionService struct {
	ledger *store.Ledger
}

// NewProjectionService creates a new ProjectionServicer.
func NewProjectionService(ledger *store.Ledger) ProjectionServicer {
	return &projectionService{ledger: ledger}
}

func expensesBetween(userID string, start, end time.Time) []store.Filter {
	return []store.Filter{
		store.Eq("user_id", userID),
		store.Eq("type", models.TransactionTypeExpense),
		store.Gte("date", start.UTC()),
		store.Lt("date", end.UTC()),
	}
}

// CategorySpent sums the user's expenses in the category dated within [periodStart, periodEnd).
func (s *projectionService) CategorySpent(ctx context.Context, userID, categoryID string, periodStart, periodEnd time.Time) (int64, error) {
	if periodEnd.Before(periodStart) {
		return 0, apperrors.ErrInvalidDateRange
	}
	where := append(expensesBetween(userID, periodStart, periodEnd), store.Eq("category_id", categoryID))
	return s.ledger.Transactions.SumInt64(ctx, store.And(where...), "amount")
}

// BudgetUtilization reports allocated, spent and remaining per allocated
// category over the budget period. All reads share one snapshot.
func (s *projectionService) BudgetUtilization(ctx context.Context, budgetID string) (*BudgetUtilization, error) {
	var out *BudgetUtilization
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		budget, err := tx.Budgets.FindUnique(ctx, budgetID)
		if err != nil {
			return err
		}
		out, err = utilization(ctx, tx, budget)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func utilization(ctx context.Context, l *store.Ledger, budget *models.Budget) (*BudgetUtilization, error) {
	allocations, err := l.Allocations.FindMany(ctx, store.Query{
		Where:   store.Eq("budget_id", budget.ID),
		OrderBy: []store.Sort{{Field: "created_at"}, {Field: "id"}},
	})
	if err != nil {
		return nil, err
	}

	categoryIDs := make([]string, len(allocations))
	for i, a := range allocations {
		categoryIDs[i] = a.CategoryID
	}
	names, err := categoryNames(ctx, l, categoryIDs)
	if err != nil {
		return nil, err
	}

	where := append(expensesBetween(budget.UserID, budget.StartDate, budget.EndDate), store.In("category_id", categoryIDs))
	groups, err := l.Transactions.GroupBy(ctx, store.And(where...), "category_id", "amount")
	if err != nil {
		return nil, err
	}
	spent := make(map[string]int64, len(groups))
	for _, g := range groups {
		spent[g.Key] = g.Sum
	}

	out := &BudgetUtilization{
		BudgetID:   budget.ID,
		Amount:     budget.Amount,
		Categories: make([]AllocationUsage, 0, len(allocations)),
	}
	for _, a := range allocations {
		usage := AllocationUsage{
			CategoryID:   a.CategoryID,
			CategoryName: names[a.CategoryID],
			Allocated:    a.Amount,
			Spent:        spent[a.CategoryID],
		}
		usage.Remaining = usage.Allocated - usage.Spent
		out.Categories = append(out.Categories, usage)
		out.Allocated += usage.Allocated
		out.Spent += usage.Spent
	}
	out.Remaining = out.Allocated - out.Spent
	out.Unallocated = out.Amount - out.Allocated
	return out, nil
}

func categoryNames(ctx context.Context, l *store.Ledger, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	categories, err := l.Categories.FindMany(ctx, store.Query{Where: store.In("id", ids)})
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// BillStatus reports whether the bill is UPCOMING, OVERDUE or PAID at asOf.
func (s *projectionService) BillStatus(ctx context.Context, billID string, asOf time.Time) (*BillStatusView, error) {
	bill, err := s.ledger.Bills.FindUnique(ctx, billID)
	if err != nil {
		return nil, err
	}
	return evaluateBill(ctx, s.ledger, bill, asOf, "")
}

// SavingsProgress reports current/target clamped to [0, 1].
func (s *projectionService) SavingsProgress(ctx context.Context, goalID string) (*SavingsProgress, error) {
	goal, err := s.ledger.Goals.FindUnique(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return progressOf(goal), nil
}

func progressOf(goal *models.SavingsGoal) *SavingsProgress {
	p := &SavingsProgress{
		GoalID:        goal.ID,
		CurrentAmount: goal.CurrentAmount,
		TargetAmount:  goal.TargetAmount,
		Completed:     models.IsComplete(goal.CurrentAmount, goal.TargetAmount),
	}
	switch {
	case goal.TargetAmount <= 0 || p.Completed:
		if p.Completed {
			p.Progress = 1
		}
	case goal.CurrentAmount > 0:
		p.Progress = float64(goal.CurrentAmount) / float64(goal.TargetAmount)
	}
	return p
}

// SpendingByCategory totals the user's expenses in [from, to) per category,
// largest first.
func (s *projectionService) SpendingByCategory(ctx context.Context, userID string, from, to time.Time) ([]CategorySpending, error) {
	if to.Before(from) {
		return nil, apperrors.ErrInvalidDateRange
	}
	groups, err := s.ledger.Transactions.GroupBy(ctx, store.And(expensesBetween(userID, from, to)...), "category_id", "amount")
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.Key
	}
	names, err := categoryNames(ctx, s.ledger, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CategorySpending, len(groups))
	for i, g := range groups {
		out[i] = CategorySpending{CategoryID: g.Key, CategoryName: names[g.Key], Count: g.Count, Total: g.Sum}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

// TransactionStats aggregates the amounts of the user's transactions matching filter.
func (s *projectionService) TransactionStats(ctx context.Context, userID string, filter TransactionFilter) (*TransactionStats, error) {
	agg, err := s.ledger.Transactions.Aggregate(ctx, transactionWhere(userID, filter), "amount")
	if err != nil {
		return nil, err
	}
	return &TransactionStats{
		Count: agg.Count,
		Sum:   agg.Sum,
		Avg:   agg.Avg,
		Min:   agg.Min,
		Max:   agg.Max,
	}, nil
}

// Overview gathers utilization of the budgets active at asOf, the status of
// every bill and the progress of every goal for one user.
func (s *projectionService) Overview(ctx context.Context, userID string, asOf time.Time) (*Overview, error) {
	asOf = asOf.UTC()

	budgets, err := s.ledger.Budgets.FindMany(ctx, store.Query{
		Where: store.And(
			store.Eq("user_id", userID),
			store.Lte("start_date", asOf),
			store.Where("end_date", store.OpGt, asOf),
		),
		OrderBy: []store.Sort{{Field: "start_date"}, {Field: "id"}},
	})
	if err != nil {
		return nil, err
	}
	bills, err := s.ledger.Bills.FindMany(ctx, store.Query{
		Where:   store.Eq("user_id", userID),
		OrderBy: []store.Sort{{Field: "due_date"}, {Field: "id"}},
	})
	if err != nil {
		return nil, err
	}
	goals, err := s.ledger.Goals.FindMany(ctx, store.Query{
		Where:   store.Eq("user_id", userID),
		OrderBy: []store.Sort{{Field: "created_at"}, {Field: "id"}},
	})
	if err != nil {
		return nil, err
	}

	out := &Overview{
		AsOf:    asOf,
		Budgets: make([]BudgetUtilization, len(budgets)),
		Bills:   make([]BillStatusView, len(bills)),
		Goals:   make([]SavingsProgress, len(goals)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i := range budgets {
		g.Go(func() error {
			u, err := utilization(gctx, s.ledger, &budgets[i])
			if err != nil {
				return err
			}
			out.Budgets[i] = *u
			return nil
		})
	}
	for i := range bills {
		g.Go(func() error {
			v, err := evaluateBill(gctx, s.ledger, &bills[i], asOf, "")
			if err != nil {
				return err
			}
			out.Bills[i] = *v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range goals {
		out.Goals[i] = *progressOf(&goals[i])
	}
	return out, nil
}
