package store_test

import (
	"context"
	"testing"
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/store"
	"fintrack/internal/testutil"

	"gorm.io/gorm"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns_id_and_persists", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		cat := &models.Category{UserID: user.ID, Name: "Groceries", Type: models.CategoryTypeExpense}
		testutil.AssertNoError(t, ledger.Categories.Create(ctx, cat))
		if cat.ID == "" {
			t.Fatal("expected ID to be assigned")
		}

		got, err := ledger.Categories.FindUnique(ctx, cat.ID)
		testutil.AssertNoError(t, err)
		if got.Name != "Groceries" {
			t.Errorf("expected name Groceries, got %s", got.Name)
		}
	})

	t.Run("unknown_foreign_key", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 1000)

		err := ledger.Allocations.Create(ctx, &models.CategoryAllocation{
			BudgetID:   budget.ID,
			CategoryID: "0190a1b2-0000-7000-8000-000000000000",
			Amount:     100,
		})
		testutil.AssertErrorDetail(t, err, "CONSTRAINT_VIOLATION", "category_id", "foreign_key")
	})

	t.Run("missing_required_foreign_key", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		err := ledger.Budgets.Create(ctx, &models.Budget{Name: "orphan", Amount: 1})
		testutil.AssertAppError(t, err, "CONSTRAINT_VIOLATION")
	})

	t.Run("duplicate_unique_key", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 1000)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		testutil.CreateTestAllocation(t, db, budget.ID, cat.ID, 100)

		err := ledger.Allocations.Create(ctx, &models.CategoryAllocation{BudgetID: budget.ID, CategoryID: cat.ID, Amount: 50})
		appErr := testutil.AssertAppError(t, err, "CONSTRAINT_VIOLATION")
		if appErr.Constraint != "unique" {
			t.Errorf("expected unique constraint, got %s", appErr.Constraint)
		}
	})

	t.Run("optional_foreign_key_may_be_empty", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		tx := &models.Transaction{UserID: user.ID, CategoryID: cat.ID, Type: models.TransactionTypeExpense, Amount: 10, Date: time.Now().UTC()}
		testutil.AssertNoError(t, ledger.Transactions.Create(ctx, tx))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies_fields", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		got, err := ledger.Categories.Update(ctx, cat.ID, map[string]any{"name": "Rent", "color": "#000000"})
		testutil.AssertNoError(t, err)
		if got.Name != "Rent" || got.Color != "#000000" {
			t.Errorf("unexpected row after update: %+v", got)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := ledger.Categories.Update(ctx, "0190a1b2-0000-7000-8000-000000000000", map[string]any{"name": "x"})
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})

	t.Run("unique_breach_rolls_back", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		first := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		second := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := ledger.Categories.Update(ctx, second.ID, map[string]any{"name": first.Name})
		testutil.AssertAppError(t, err, "CONSTRAINT_VIOLATION")

		got, err := ledger.Categories.FindUnique(ctx, second.ID)
		testutil.AssertNoError(t, err)
		if got.Name != second.Name {
			t.Errorf("expected name to stay %s, got %s", second.Name, got.Name)
		}
	})

	t.Run("rejects_bad_column_name", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := ledger.Categories.Update(ctx, cat.ID, map[string]any{"name; DROP TABLE users": "x"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestUpdateWhere(t *testing.T) {
	ctx := context.Background()

	t.Run("compare_and_swap", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 1000)

		bump := map[string]any{"version": gorm.Expr("version + 1")}
		n, err := ledger.Budgets.UpdateWhere(ctx, store.And(store.Eq("id", budget.ID), store.Eq("version", 0)), bump)
		testutil.AssertNoError(t, err)
		if n != 1 {
			t.Fatalf("expected first swap to win, got %d rows", n)
		}

		n, err = ledger.Budgets.UpdateWhere(ctx, store.And(store.Eq("id", budget.ID), store.Eq("version", 0)), bump)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected stale swap to lose, got %d rows", n)
		}
	})

	t.Run("requires_filter", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := ledger.Budgets.UpdateWhere(ctx, nil, map[string]any{"amount": 0})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("not_found", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		err := ledger.Budgets.Delete(ctx, "0190a1b2-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})

	t.Run("restricted_by_dependents", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		testutil.CreateTestTransaction(t, db, user.ID, cat.ID, models.TransactionTypeExpense, 100, testutil.Date(2025, time.January, 3))

		err := ledger.Categories.Delete(ctx, cat.ID)
		testutil.AssertAppError(t, err, "DEPENDENCY_EXISTS")

		if _, err := ledger.Categories.FindUnique(ctx, cat.ID); err != nil {
			t.Errorf("category should still exist: %v", err)
		}
	})

	t.Run("cascades_allocations", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, 1000)
		testutil.CreateTestAllocation(t, db, budget.ID, cat.ID, 400)

		testutil.AssertNoError(t, ledger.Budgets.Delete(ctx, budget.ID))

		n, err := ledger.Allocations.Count(ctx, store.Eq("budget_id", budget.ID))
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected allocations to be removed, found %d", n)
		}
	})

	t.Run("detaches_bill_payments", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		bill := testutil.CreateTestBill(t, db, user.ID, cat.ID, testutil.Date(2025, time.January, 10), models.BillFrequencyMonthly)
		payment := testutil.CreateTestBillPayment(t, db, bill, testutil.Date(2025, time.January, 9))

		testutil.AssertNoError(t, ledger.Bills.Delete(ctx, bill.ID))

		got, err := ledger.Transactions.FindUnique(ctx, payment.ID)
		testutil.AssertNoError(t, err)
		if got.BillID != nil {
			t.Errorf("expected bill_id to be cleared, got %s", *got.BillID)
		}
	})

	t.Run("user_cascades_everything", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		otherCat := testutil.CreateTestCategory(t, db, other.ID, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, 1000)
		testutil.CreateTestAllocation(t, db, budget.ID, cat.ID, 400)
		bill := testutil.CreateTestBill(t, db, user.ID, cat.ID, testutil.Date(2025, time.January, 10), models.BillFrequencyMonthly)
		testutil.CreateTestBillPayment(t, db, bill, testutil.Date(2025, time.January, 9))
		testutil.CreateTestGoal(t, db, user.ID, 1000, 0)

		testutil.AssertNoError(t, ledger.Users.Delete(ctx, user.ID))

		for table, count := range map[string]func() (int64, error){
			"categories":   func() (int64, error) { return ledger.Categories.Count(ctx, store.Eq("user_id", user.ID)) },
			"budgets":      func() (int64, error) { return ledger.Budgets.Count(ctx, store.Eq("user_id", user.ID)) },
			"allocations":  func() (int64, error) { return ledger.Allocations.Count(ctx, store.Eq("budget_id", budget.ID)) },
			"bills":        func() (int64, error) { return ledger.Bills.Count(ctx, store.Eq("user_id", user.ID)) },
			"transactions": func() (int64, error) { return ledger.Transactions.Count(ctx, store.Eq("user_id", user.ID)) },
			"goals":        func() (int64, error) { return ledger.Goals.Count(ctx, store.Eq("user_id", user.ID)) },
		} {
			n, err := count()
			testutil.AssertNoError(t, err)
			if n != 0 {
				t.Errorf("expected %s to be removed, found %d", table, n)
			}
		}

		if _, err := ledger.Categories.FindUnique(ctx, otherCat.ID); err != nil {
			t.Errorf("other user's data should survive: %v", err)
		}
	})

	t.Run("delete_where_counts_rows", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestGoal(t, db, user.ID, 100, 0)
		testutil.CreateTestGoal(t, db, user.ID, 100, 0)

		n, err := ledger.Goals.DeleteWhere(ctx, store.Eq("user_id", user.ID))
		testutil.AssertNoError(t, err)
		if n != 2 {
			t.Errorf("expected 2 rows removed, got %d", n)
		}

		n, err = ledger.Goals.DeleteWhere(ctx, store.Eq("user_id", user.ID))
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected no rows on second delete, got %d", n)
		}
	})
}

func TestFindMany(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*store.Ledger, *gorm.DB, *models.User, *models.Category) {
		ledger, db := testutil.SetupTestLedger(t)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		for i, amount := range []int64{100, 200, 300, 400} {
			tx := testutil.CreateTestTransaction(t, db, user.ID, cat.ID, models.TransactionTypeExpense, amount, testutil.Date(2025, time.January, i+1))
			if amount == 300 {
				db.Model(tx).Update("description", "coffee beans")
			}
		}
		return ledger, db, user, cat
	}

	t.Run("filter_order_and_window", func(t *testing.T) {
		ledger, db, user, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		rows, err := ledger.Transactions.FindMany(ctx, store.Query{
			Where:   store.And(store.Eq("user_id", user.ID), store.Gte("amount", 200)),
			OrderBy: []store.Sort{{Field: "amount", Desc: true}},
			Skip:    1,
			Take:    1,
		})
		testutil.AssertNoError(t, err)
		if len(rows) != 1 || rows[0].Amount != 300 {
			t.Fatalf("expected single row with amount 300, got %+v", rows)
		}
	})

	t.Run("or_not_in_contains", func(t *testing.T) {
		ledger, db, _, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		n, err := ledger.Transactions.Count(ctx, store.Or(store.Eq("amount", 100), store.Where("description", store.OpContains, "coffee")))
		testutil.AssertNoError(t, err)
		if n != 2 {
			t.Errorf("expected 2 rows for or, got %d", n)
		}

		n, err = ledger.Transactions.Count(ctx, store.Not(store.In("amount", []int64{100, 200})))
		testutil.AssertNoError(t, err)
		if n != 2 {
			t.Errorf("expected 2 rows for not-in, got %d", n)
		}

		n, err = ledger.Transactions.Count(ctx, store.In("amount", []int64{}))
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected empty in to match nothing, got %d", n)
		}

		n, err = ledger.Transactions.Count(ctx, store.IsNull("bill_id"))
		testutil.AssertNoError(t, err)
		if n != 4 {
			t.Errorf("expected 4 rows without bill, got %d", n)
		}
	})

	t.Run("rejects_bad_field", func(t *testing.T) {
		ledger, db, _, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := ledger.Transactions.FindMany(ctx, store.Query{Where: store.Eq("amount) OR (1=1", 1)})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = ledger.Transactions.FindMany(ctx, store.Query{OrderBy: []store.Sort{{Field: "amount desc"}}})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("find_first_not_found", func(t *testing.T) {
		ledger, db, _, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := ledger.Transactions.FindFirst(ctx, store.Eq("amount", 999))
		testutil.AssertAppError(t, err, "NOT_FOUND")
	})
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregate_sum_and_group_by", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		rent := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		day := testutil.Date(2025, time.January, 2)
		testutil.CreateTestTransaction(t, db, user.ID, food.ID, models.TransactionTypeExpense, 100, day)
		testutil.CreateTestTransaction(t, db, user.ID, food.ID, models.TransactionTypeExpense, 300, day)
		testutil.CreateTestTransaction(t, db, user.ID, rent.ID, models.TransactionTypeExpense, 1000, day)

		agg, err := ledger.Transactions.Aggregate(ctx, store.Eq("category_id", food.ID), "amount")
		testutil.AssertNoError(t, err)
		if agg.Count != 2 || agg.Sum != 400 || agg.Avg != 200 || agg.Min != 100 || agg.Max != 300 {
			t.Errorf("unexpected aggregates: %+v", agg)
		}

		sum, err := ledger.Transactions.SumInt64(ctx, store.Eq("user_id", user.ID), "amount")
		testutil.AssertNoError(t, err)
		if sum != 1400 {
			t.Errorf("expected sum 1400, got %d", sum)
		}

		groups, err := ledger.Transactions.GroupBy(ctx, store.Eq("user_id", user.ID), "category_id", "amount")
		testutil.AssertNoError(t, err)
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		byKey := map[string]store.Group{}
		for _, g := range groups {
			byKey[g.Key] = g
		}
		if byKey[food.ID].Sum != 400 || byKey[food.ID].Count != 2 {
			t.Errorf("unexpected food group: %+v", byKey[food.ID])
		}
		if byKey[rent.ID].Sum != 1000 {
			t.Errorf("unexpected rent group: %+v", byKey[rent.ID])
		}
	})

	t.Run("empty_set_is_zero", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		sum, err := ledger.Transactions.SumInt64(ctx, store.Eq("user_id", "nobody"), "amount")
		testutil.AssertNoError(t, err)
		if sum != 0 {
			t.Errorf("expected 0, got %d", sum)
		}
	})
}

func TestTransactions(t *testing.T) {
	t.Run("rolls_back_on_error", func(t *testing.T) {
		ctx := context.Background()
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		err := ledger.InTx(ctx, func(tx *store.Ledger) error {
			if err := tx.Goals.Create(ctx, &models.SavingsGoal{UserID: user.ID, Name: "car", TargetAmount: 100}); err != nil {
				return err
			}
			return apperrors.ErrOverAllocation
		})
		testutil.AssertAppError(t, err, "OVER_ALLOCATION")

		n, err := ledger.Goals.Count(ctx, store.Eq("user_id", user.ID))
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected rollback to discard the goal, found %d", n)
		}
	})

	t.Run("canceled_context_is_timeout", func(t *testing.T) {
		ledger, db := testutil.SetupTestLedger(t)
		defer testutil.TeardownTestDB(t, db)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ledger.Users.FindMany(ctx, store.Query{})
		testutil.AssertAppError(t, err, "TIMEOUT")
	})
}
