package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/services"
)

// --- mock projection service ---

type mockProjectionService struct {
	categorySpentFn      func(userID, categoryID string, start, end time.Time) (int64, error)
	budgetUtilizationFn  func(budgetID string) (*services.BudgetUtilization, error)
	billStatusFn         func(billID string, asOf time.Time) (*services.BillStatusView, error)
	savingsProgressFn    func(goalID string) (*services.SavingsProgress, error)
	spendingByCategoryFn func(userID string, from, to time.Time) ([]services.CategorySpending, error)
	transactionStatsFn   func(userID string, filter services.TransactionFilter) (*services.TransactionStats, error)
	overviewFn           func(userID string, asOf time.Time) (*services.Overview, error)
}

var _ services.ProjectionServicer = (*mockProjectionService)(nil)

func (m *mockProjectionService) CategorySpent(_ context.Context, userID, categoryID string, start, end time.Time) (int64, error) {
	if m.categorySpentFn != nil {
		return m.categorySpentFn(userID, categoryID, start, end)
	}
	return 0, nil
}

func (m *mockProjectionService) BudgetUtilization(_ context.Context, budgetID string) (*services.BudgetUtilization, error) {
	if m.budgetUtilizationFn != nil {
		return m.budgetUtilizationFn(budgetID)
	}
	return &services.BudgetUtilization{BudgetID: budgetID}, nil
}

func (m *mockProjectionService) BillStatus(_ context.Context, billID string, asOf time.Time) (*services.BillStatusView, error) {
	if m.billStatusFn != nil {
		return m.billStatusFn(billID, asOf)
	}
	return &services.BillStatusView{BillID: billID, AsOf: asOf}, nil
}

func (m *mockProjectionService) SavingsProgress(_ context.Context, goalID string) (*services.SavingsProgress, error) {
	if m.savingsProgressFn != nil {
		return m.savingsProgressFn(goalID)
	}
	return &services.SavingsProgress{GoalID: goalID}, nil
}

func (m *mockProjectionService) SpendingByCategory(_ context.Context, userID string, from, to time.Time) ([]services.CategorySpending, error) {
	if m.spendingByCategoryFn != nil {
		return m.spendingByCategoryFn(userID, from, to)
	}
	return []services.CategorySpending{}, nil
}

func (m *mockProjectionService) TransactionStats(_ context.Context, userID string, filter services.TransactionFilter) (*services.TransactionStats, error) {
	if m.transactionStatsFn != nil {
		return m.transactionStatsFn(userID, filter)
	}
	return &services.TransactionStats{}, nil
}

func (m *mockProjectionService) Overview(_ context.Context, userID string, asOf time.Time) (*services.Overview, error) {
	if m.overviewFn != nil {
		return m.overviewFn(userID, asOf)
	}
	return &services.Overview{AsOf: asOf}, nil
}

func setupReportRouter(handler *ReportHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/reports/spending", handler.GetSpending)
	auth.GET("/reports/overview", handler.GetOverview)
	return r
}

func newTestReportHandler(projections *mockProjectionService, users *mockUserService, now time.Time) *ReportHandler {
	h := NewReportHandler(projections, users)
	h.now = func() time.Time { return now }
	return h
}

// --- tests ---

func TestReportHandler_GetSpending(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)

	t.Run("defaults to the current month", func(t *testing.T) {
		var gotFrom, gotTo time.Time
		projections := &mockProjectionService{
			spendingByCategoryFn: func(_ string, from, to time.Time) ([]services.CategorySpending, error) {
				gotFrom, gotTo = from, to
				return nil, nil
			},
		}
		r := setupReportRouter(newTestReportHandler(projections, &mockUserService{}, now))

		rec := doRequest(r, "GET", "/reports/spending", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotFrom.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) || !gotTo.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected window %v - %v", gotFrom, gotTo)
		}
	})

	t.Run("formats totals in the user's currency", func(t *testing.T) {
		projections := &mockProjectionService{
			spendingByCategoryFn: func(_ string, _, _ time.Time) ([]services.CategorySpending, error) {
				return []services.CategorySpending{
					{CategoryID: "a", CategoryName: "Rent", Count: 1, Total: 123450},
					{CategoryID: "b", CategoryName: "Food", Count: 3, Total: 4550},
				}, nil
			},
		}
		users := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				format := models.DefaultCurrencyFormat()
				format.CurrencySymbol = "€"
				format.SymbolPosition = models.SymbolAfter
				format.DecimalSeparator = ","
				format.ThousandsSeparator = "."
				return &models.User{Base: models.Base{ID: id}, CurrencyFormat: format}, nil
			},
		}
		r := setupReportRouter(newTestReportHandler(projections, users, now))

		rec := doRequest(r, "GET", "/reports/spending?from=2025-01-01&to=2025-02-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total"] != float64(128000) {
			t.Errorf("expected total 128000, got %v", result["total"])
		}
		if result["total_formatted"] != "1.280,00 €" {
			t.Errorf("expected 1.280,00 €, got %v", result["total_formatted"])
		}
		first := result["categories"].([]interface{})[0].(map[string]interface{})
		if first["formatted"] != "1.234,50 €" || first["category_name"] != "Rent" {
			t.Errorf("unexpected first line %v", first)
		}
	})

	t.Run("returns 400 on reversed range", func(t *testing.T) {
		projections := &mockProjectionService{
			spendingByCategoryFn: func(_ string, _, _ time.Time) ([]services.CategorySpending, error) {
				return nil, apperrors.ErrInvalidDateRange
			},
		}
		r := setupReportRouter(newTestReportHandler(projections, &mockUserService{}, now))

		rec := doRequest(r, "GET", "/reports/spending?from=2025-02-01&to=2025-01-01", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_DATE_RANGE")
	})

	t.Run("returns 400 on malformed date", func(t *testing.T) {
		r := setupReportRouter(newTestReportHandler(&mockProjectionService{}, &mockUserService{}, now))

		rec := doRequest(r, "GET", "/reports/spending?from=yesterday", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestReportHandler_GetOverview(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)

	t.Run("evaluates at now by default", func(t *testing.T) {
		var gotAsOf time.Time
		projections := &mockProjectionService{
			overviewFn: func(_ string, asOf time.Time) (*services.Overview, error) {
				gotAsOf = asOf
				return &services.Overview{AsOf: asOf}, nil
			},
		}
		r := setupReportRouter(newTestReportHandler(projections, &mockUserService{}, now))

		rec := doRequest(r, "GET", "/reports/overview", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotAsOf.Equal(now) {
			t.Errorf("expected %v, got %v", now, gotAsOf)
		}
	})

	t.Run("accepts an explicit as_of", func(t *testing.T) {
		var gotAsOf time.Time
		projections := &mockProjectionService{
			overviewFn: func(_ string, asOf time.Time) (*services.Overview, error) {
				gotAsOf = asOf
				return &services.Overview{AsOf: asOf}, nil
			},
		}
		r := setupReportRouter(newTestReportHandler(projections, &mockUserService{}, now))

		rec := doRequest(r, "GET", "/reports/overview?as_of=2025-01-16T12:00:00Z", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotAsOf.Equal(time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected as_of %v", gotAsOf)
		}
	})
}
