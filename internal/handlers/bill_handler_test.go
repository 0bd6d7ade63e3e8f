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

// --- mock bill service ---

type mockBillService struct {
	createBillFn   func(userID string, input services.BillInput) (*models.Bill, error)
	getUserBillsFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Bill], error)
	getBillByIDFn  func(userID, billID string) (*models.Bill, error)
	updateBillFn   func(userID, billID string, update services.BillUpdate) (*models.Bill, error)
	deleteBillFn   func(userID, billID string) error
	sweepFn        func(asOf time.Time) (int, error)
}

var _ services.BillServicer = (*mockBillService)(nil)

func (m *mockBillService) CreateBill(_ context.Context, userID string, input services.BillInput) (*models.Bill, error) {
	if m.createBillFn != nil {
		return m.createBillFn(userID, input)
	}
	return &models.Bill{}, nil
}

func (m *mockBillService) GetUserBills(_ context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Bill], error) {
	if m.getUserBillsFn != nil {
		return m.getUserBillsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Bill{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBillService) GetBillByID(_ context.Context, userID, billID string) (*models.Bill, error) {
	if m.getBillByIDFn != nil {
		return m.getBillByIDFn(userID, billID)
	}
	return &models.Bill{Base: models.Base{ID: billID}, UserID: userID}, nil
}

func (m *mockBillService) UpdateBill(_ context.Context, userID, billID string, update services.BillUpdate) (*models.Bill, error) {
	if m.updateBillFn != nil {
		return m.updateBillFn(userID, billID, update)
	}
	return &models.Bill{Base: models.Base{ID: billID}}, nil
}

func (m *mockBillService) DeleteBill(_ context.Context, userID, billID string) error {
	if m.deleteBillFn != nil {
		return m.deleteBillFn(userID, billID)
	}
	return nil
}

func (m *mockBillService) SweepOverdue(_ context.Context, asOf time.Time) (int, error) {
	if m.sweepFn != nil {
		return m.sweepFn(asOf)
	}
	return 0, nil
}

func setupBillRouter(handler *BillHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/bills", handler.CreateBill)
	auth.GET("/bills", handler.GetBills)
	auth.GET("/bills/:id", handler.GetBill)
	auth.PUT("/bills/:id", handler.UpdateBill)
	auth.DELETE("/bills/:id", handler.DeleteBill)
	auth.GET("/bills/:id/status", handler.GetBillStatus)
	r.POST("/internal/bills/sweep", handler.SweepOverdue)
	return r
}

func newTestBillHandler(bills *mockBillService, projections *mockProjectionService, now time.Time) *BillHandler {
	h := NewBillHandler(bills, projections, &mockAuditService{})
	h.now = func() time.Time { return now }
	return h
}

// --- tests ---

func TestBillHandler_CreateBill(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.BillInput
		bills := &mockBillService{
			createBillFn: func(userID string, input services.BillInput) (*models.Bill, error) {
				got = input
				return &models.Bill{Base: models.Base{ID: testBillID}, UserID: userID, Name: input.Name, DueDate: input.DueDate}, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, &mockProjectionService{}, now))

		rec := doRequest(r, "POST", "/bills",
			`{"category_id":"`+testCategoryID+`","name":"Rent","amount":120000,"due_date":"2025-01-15","frequency":"MONTHLY","autopay":true}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.DueDate.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) || !got.Autopay || got.Frequency != models.BillFrequencyMonthly {
			t.Errorf("unexpected input %+v", got)
		}
	})

	t.Run("returns 400 on unknown frequency", func(t *testing.T) {
		r := setupBillRouter(newTestBillHandler(&mockBillService{}, &mockProjectionService{}, now))

		rec := doRequest(r, "POST", "/bills",
			`{"category_id":"`+testCategoryID+`","name":"Rent","amount":1,"due_date":"2025-01-15","frequency":"FORTNIGHTLY"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on unknown category", func(t *testing.T) {
		bills := &mockBillService{
			createBillFn: func(_ string, _ services.BillInput) (*models.Bill, error) {
				return nil, apperrors.Detailed(apperrors.ErrConstraintViolation, "bill", "category_id", "foreign_key")
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, &mockProjectionService{}, now))

		rec := doRequest(r, "POST", "/bills",
			`{"category_id":"`+testCategoryID+`","name":"Rent","amount":1,"due_date":"2025-01-15","frequency":"MONTHLY"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CONSTRAINT_VIOLATION")
	})
}

func TestBillHandler_GetBillStatus(t *testing.T) {
	now := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)

	t.Run("uses now when as_of is absent", func(t *testing.T) {
		var gotAsOf time.Time
		projections := &mockProjectionService{
			billStatusFn: func(billID string, asOf time.Time) (*services.BillStatusView, error) {
				gotAsOf = asOf
				return &services.BillStatusView{BillID: billID, Status: models.BillStatusOverdue, AsOf: asOf}, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(&mockBillService{}, projections, now))

		rec := doRequest(r, "GET", "/bills/"+testBillID+"/status", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotAsOf.Equal(now) {
			t.Errorf("expected %v, got %v", now, gotAsOf)
		}
		status := parseJSON(t, rec)["status"].(map[string]interface{})
		if status["status"] != "OVERDUE" {
			t.Errorf("expected OVERDUE, got %v", status["status"])
		}
	})

	t.Run("passes an explicit as_of", func(t *testing.T) {
		var gotAsOf time.Time
		projections := &mockProjectionService{
			billStatusFn: func(billID string, asOf time.Time) (*services.BillStatusView, error) {
				gotAsOf = asOf
				return &services.BillStatusView{BillID: billID, Status: models.BillStatusPaid}, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(&mockBillService{}, projections, now))

		rec := doRequest(r, "GET", "/bills/"+testBillID+"/status?as_of=2025-01-20", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotAsOf.Equal(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected as_of %v", gotAsOf)
		}
	})

	t.Run("returns 404 for another user's bill", func(t *testing.T) {
		bills := &mockBillService{
			getBillByIDFn: func(_, _ string) (*models.Bill, error) {
				return nil, apperrors.NotFound("bill")
			},
		}
		called := false
		projections := &mockProjectionService{
			billStatusFn: func(_ string, _ time.Time) (*services.BillStatusView, error) {
				called = true
				return nil, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, projections, now))

		rec := doRequest(r, "GET", "/bills/"+testBillID+"/status", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if called {
			t.Error("projection must not be reached")
		}
	})

	t.Run("returns 400 on malformed as_of", func(t *testing.T) {
		r := setupBillRouter(newTestBillHandler(&mockBillService{}, &mockProjectionService{}, now))

		rec := doRequest(r, "GET", "/bills/"+testBillID+"/status?as_of=soon", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBillHandler_UpdateAndDelete(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("updates only sent fields", func(t *testing.T) {
		var got services.BillUpdate
		bills := &mockBillService{
			updateBillFn: func(_, billID string, update services.BillUpdate) (*models.Bill, error) {
				got = update
				return &models.Bill{Base: models.Base{ID: billID}}, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, &mockProjectionService{}, now))

		rec := doRequest(r, "PUT", "/bills/"+testBillID, `{"autopay":false,"due_date":"2025-02-01"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Autopay == nil || *got.Autopay || got.DueDate == nil || got.Name != nil {
			t.Errorf("unexpected update %+v", got)
		}
	})

	t.Run("deletes the bill", func(t *testing.T) {
		var deleted string
		bills := &mockBillService{
			deleteBillFn: func(_, billID string) error {
				deleted = billID
				return nil
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, &mockProjectionService{}, now))

		rec := doRequest(r, "DELETE", "/bills/"+testBillID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deleted != testBillID {
			t.Errorf("expected %s deleted, got %q", testBillID, deleted)
		}
	})
}

func TestBillHandler_SweepOverdue(t *testing.T) {
	now := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)

	t.Run("reports the number of overdue bills", func(t *testing.T) {
		var gotAsOf time.Time
		bills := &mockBillService{
			sweepFn: func(asOf time.Time) (int, error) {
				gotAsOf = asOf
				return 2, nil
			},
		}
		r := setupBillRouter(newTestBillHandler(bills, &mockProjectionService{}, now))

		rec := doRequest(r, "POST", "/internal/bills/sweep", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotAsOf.Equal(now) {
			t.Errorf("expected %v, got %v", now, gotAsOf)
		}
		if parseJSON(t, rec)["overdue"] != float64(2) {
			t.Error("expected overdue count 2")
		}
	})
}
