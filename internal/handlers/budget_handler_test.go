package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// --- mock budget services ---

type mockBudgetService struct {
	createBudgetFn   func(userID, name string, amount int64, timeframe models.BudgetTimeframe, startDate, endDate time.Time) (*models.Budget, error)
	getUserBudgetsFn func(userID string, page pagination.PageRequest, timeframe *models.BudgetTimeframe) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn  func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn   func(userID, budgetID string, update services.BudgetUpdate) (*models.Budget, error)
	deleteBudgetFn   func(userID, budgetID string) error
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func (m *mockBudgetService) CreateBudget(_ context.Context, userID, name string, amount int64, timeframe models.BudgetTimeframe, startDate, endDate time.Time) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, name, amount, timeframe, startDate, endDate)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(_ context.Context, userID string, page pagination.PageRequest, timeframe *models.BudgetTimeframe) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, timeframe)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(_ context.Context, userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{Base: models.Base{ID: budgetID}, UserID: userID, Amount: 50000}, nil
}

func (m *mockBudgetService) UpdateBudget(_ context.Context, userID, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, update)
	}
	return &models.Budget{Base: models.Base{ID: budgetID}}, nil
}

func (m *mockBudgetService) DeleteBudget(_ context.Context, userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

type mockAllocationService struct {
	upsertFn func(budgetID, categoryID string, amount int64) (*models.CategoryAllocation, error)
	removeFn func(budgetID, categoryID string) error
	totalFn  func(budgetID string) (int64, error)
	listFn   func(budgetID string) ([]models.CategoryAllocation, error)
}

var _ services.AllocationServicer = (*mockAllocationService)(nil)

func (m *mockAllocationService) UpsertAllocation(_ context.Context, budgetID, categoryID string, amount int64) (*models.CategoryAllocation, error) {
	if m.upsertFn != nil {
		return m.upsertFn(budgetID, categoryID, amount)
	}
	return &models.CategoryAllocation{BudgetID: budgetID, CategoryID: categoryID, Amount: amount}, nil
}

func (m *mockAllocationService) RemoveAllocation(_ context.Context, budgetID, categoryID string) error {
	if m.removeFn != nil {
		return m.removeFn(budgetID, categoryID)
	}
	return nil
}

func (m *mockAllocationService) TotalAllocated(_ context.Context, budgetID string) (int64, error) {
	if m.totalFn != nil {
		return m.totalFn(budgetID)
	}
	return 0, nil
}

func (m *mockAllocationService) ListAllocations(_ context.Context, budgetID string) ([]models.CategoryAllocation, error) {
	if m.listFn != nil {
		return m.listFn(budgetID)
	}
	return []models.CategoryAllocation{}, nil
}

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.GET("/budgets/:id/allocations", handler.GetAllocations)
	auth.PUT("/budgets/:id/allocations/:categoryId", handler.UpsertAllocation)
	auth.DELETE("/budgets/:id/allocations/:categoryId", handler.RemoveAllocation)
	auth.GET("/budgets/:id/utilization", handler.GetUtilization)
	return r
}

func newTestBudgetHandler(budgets *mockBudgetService, allocations *mockAllocationService, projections *mockProjectionService) *BudgetHandler {
	return NewBudgetHandler(budgets, allocations, projections, &mockAuditService{})
}

// --- tests ---

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotStart, gotEnd time.Time
		budgets := &mockBudgetService{
			createBudgetFn: func(userID, name string, amount int64, tf models.BudgetTimeframe, start, end time.Time) (*models.Budget, error) {
				gotStart, gotEnd = start, end
				return &models.Budget{Base: models.Base{ID: testBudgetID}, UserID: userID, Name: name, Amount: amount, Timeframe: tf}, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"January","amount":50000,"timeframe":"MONTHLY","start_date":"2025-01-01","end_date":"2025-02-01"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotStart.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) || !gotEnd.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected period %v - %v", gotStart, gotEnd)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["amount"] != float64(50000) {
			t.Errorf("expected amount 50000, got %v", budget["amount"])
		}
	})

	t.Run("returns 400 on unknown timeframe", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"x","amount":1,"timeframe":"DAILY","start_date":"2025-01-01","end_date":"2025-02-01"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on malformed date", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"x","amount":1,"timeframe":"MONTHLY","start_date":"01/01/2025","end_date":"2025-02-01"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("passes through an invalid date range", func(t *testing.T) {
		budgets := &mockBudgetService{
			createBudgetFn: func(_, _ string, _ int64, _ models.BudgetTimeframe, _, _ time.Time) (*models.Budget, error) {
				return nil, apperrors.ErrInvalidDateRange
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"x","amount":1,"timeframe":"MONTHLY","start_date":"2025-02-01","end_date":"2025-01-01"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_DATE_RANGE")
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("filters by timeframe", func(t *testing.T) {
		var got *models.BudgetTimeframe
		budgets := &mockBudgetService{
			getUserBudgetsFn: func(_ string, _ pagination.PageRequest, tf *models.BudgetTimeframe) (*pagination.PageResponse[models.Budget], error) {
				got = tf
				resp := pagination.NewPageResponse([]models.Budget{{Name: "a"}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/budgets?timeframe=YEARLY", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got == nil || *got != models.BudgetTimeframeYearly {
			t.Errorf("expected YEARLY filter, got %v", got)
		}
		if parseJSON(t, rec)["total_items"] != float64(1) {
			t.Error("expected page response at the top level")
		}
	})

	t.Run("returns 400 on unknown timeframe", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/budgets?timeframe=hourly", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("returns 400 on invalid ID", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/budgets/42", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 for another user's budget", func(t *testing.T) {
		budgets := &mockBudgetService{
			getBudgetByIDFn: func(_, _ string) (*models.Budget, error) {
				return nil, apperrors.NotFound("budget")
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_FOUND")
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("retries on conflict", func(t *testing.T) {
		calls := 0
		budgets := &mockBudgetService{
			updateBudgetFn: func(_, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
				calls++
				if calls < 3 {
					return nil, apperrors.Detailed(apperrors.ErrConflict, "budget", "version", "")
				}
				return &models.Budget{Base: models.Base{ID: budgetID}, Amount: *update.Amount}, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"amount":60000}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("returns 409 when conflicts persist", func(t *testing.T) {
		calls := 0
		budgets := &mockBudgetService{
			updateBudgetFn: func(_, _ string, _ services.BudgetUpdate) (*models.Budget, error) {
				calls++
				return nil, apperrors.ErrConflict
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"amount":60000}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CONFLICT")
		if calls != maxConflictAttempts {
			t.Errorf("expected %d attempts, got %d", maxConflictAttempts, calls)
		}
	})

	t.Run("does not retry over-allocation", func(t *testing.T) {
		calls := 0
		budgets := &mockBudgetService{
			updateBudgetFn: func(_, _ string, _ services.BudgetUpdate) (*models.Budget, error) {
				calls++
				return nil, apperrors.ErrOverAllocation
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"amount":100}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if calls != 1 {
			t.Errorf("expected 1 attempt, got %d", calls)
		}
	})

	t.Run("parses the new end date", func(t *testing.T) {
		var got services.BudgetUpdate
		budgets := &mockBudgetService{
			updateBudgetFn: func(_, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
				got = update
				return &models.Budget{Base: models.Base{ID: budgetID}}, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"end_date":"2025-03-01T00:00:00Z"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.EndDate == nil || !got.EndDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected end date %v", got.EndDate)
		}
		if got.StartDate != nil || got.Amount != nil {
			t.Error("unsent fields must stay nil")
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}, audit))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "DELETE_BUDGET" {
			t.Errorf("expected DELETE_BUDGET audit entry, got %v", audit.actions)
		}
	})
}

func TestBudgetHandler_Allocations(t *testing.T) {
	t.Run("lists allocations with totals", func(t *testing.T) {
		allocations := &mockAllocationService{
			listFn: func(budgetID string) ([]models.CategoryAllocation, error) {
				return []models.CategoryAllocation{
					{BudgetID: budgetID, CategoryID: testCategoryID, Amount: 30000},
				}, nil
			},
			totalFn: func(_ string) (int64, error) { return 30000, nil },
		}
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, allocations, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/allocations", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_allocated"] != float64(30000) {
			t.Errorf("expected total 30000, got %v", result["total_allocated"])
		}
		if result["unallocated"] != float64(20000) {
			t.Errorf("expected unallocated 20000, got %v", result["unallocated"])
		}
	})

	t.Run("upserts the allocation", func(t *testing.T) {
		var gotBudget, gotCategory string
		var gotAmount int64
		allocations := &mockAllocationService{
			upsertFn: func(budgetID, categoryID string, amount int64) (*models.CategoryAllocation, error) {
				gotBudget, gotCategory, gotAmount = budgetID, categoryID, amount
				return &models.CategoryAllocation{BudgetID: budgetID, CategoryID: categoryID, Amount: amount}, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, allocations, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, `{"amount":25000}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotBudget != testBudgetID || gotCategory != testCategoryID || gotAmount != 25000 {
			t.Errorf("unexpected upsert %s/%s/%d", gotBudget, gotCategory, gotAmount)
		}
	})

	t.Run("accepts a zero allocation", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, `{"amount":0}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 without an amount", func(t *testing.T) {
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 422 on over-allocation", func(t *testing.T) {
		allocations := &mockAllocationService{
			upsertFn: func(_, _ string, _ int64) (*models.CategoryAllocation, error) {
				return nil, apperrors.Detailed(apperrors.ErrOverAllocation, "category_allocation", "amount", "budget_amount")
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, allocations, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, `{"amount":250000}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "OVER_ALLOCATION")
		if errObj := result["error"].(map[string]interface{}); errObj["constraint"] != "budget_amount" {
			t.Errorf("expected budget_amount constraint, got %v", errObj["constraint"])
		}
	})

	t.Run("does not touch allocations of another user's budget", func(t *testing.T) {
		budgets := &mockBudgetService{
			getBudgetByIDFn: func(_, _ string) (*models.Budget, error) {
				return nil, apperrors.NotFound("budget")
			},
		}
		called := false
		allocations := &mockAllocationService{
			upsertFn: func(_, _ string, _ int64) (*models.CategoryAllocation, error) {
				called = true
				return nil, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(budgets, allocations, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, `{"amount":1}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if called {
			t.Error("allocation service must not be reached")
		}
	})

	t.Run("removes the allocation", func(t *testing.T) {
		var removed string
		allocations := &mockAllocationService{
			removeFn: func(_, categoryID string) error {
				removed = categoryID
				return nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, allocations, &mockProjectionService{}))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if removed != testCategoryID {
			t.Errorf("expected %s removed, got %q", testCategoryID, removed)
		}
	})
}

func TestBudgetHandler_GetUtilization(t *testing.T) {
	t.Run("returns the utilization", func(t *testing.T) {
		projections := &mockProjectionService{
			budgetUtilizationFn: func(budgetID string) (*services.BudgetUtilization, error) {
				return &services.BudgetUtilization{BudgetID: budgetID, Amount: 50000, Allocated: 30000, Spent: 35000, Remaining: -5000}, nil
			},
		}
		r := setupBudgetRouter(newTestBudgetHandler(&mockBudgetService{}, &mockAllocationService{}, projections))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/utilization", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		util := parseJSON(t, rec)["utilization"].(map[string]interface{})
		if util["remaining"] != float64(-5000) {
			t.Errorf("expected remaining -5000, got %v", util["remaining"])
		}
	})
}
