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

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn   func(userID string, input services.TransactionInput) (*services.TransactionResult, error)
	getUserTransactionsFn func(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn  func(userID, transactionID string) (*models.Transaction, error)
	updateTransactionFn   func(userID, transactionID string, update services.TransactionUpdate) (*services.TransactionResult, error)
	deleteTransactionFn   func(userID, transactionID string) error
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

func (m *mockTransactionService) CreateTransaction(_ context.Context, userID string, input services.TransactionInput) (*services.TransactionResult, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(userID, input)
	}
	return &services.TransactionResult{Transaction: &models.Transaction{}}, nil
}

func (m *mockTransactionService) GetUserTransactions(_ context.Context, userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(_ context.Context, userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}, UserID: userID}, nil
}

func (m *mockTransactionService) UpdateTransaction(_ context.Context, userID, transactionID string, update services.TransactionUpdate) (*services.TransactionResult, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(userID, transactionID, update)
	}
	return &services.TransactionResult{Transaction: &models.Transaction{Base: models.Base{ID: transactionID}}}, nil
}

func (m *mockTransactionService) DeleteTransaction(_ context.Context, userID, transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(userID, transactionID)
	}
	return nil
}

func setupTransactionRouter(handler *TransactionHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/transactions", handler.CreateTransaction)
	auth.GET("/transactions", handler.GetTransactions)
	auth.GET("/transactions/stats", handler.GetTransactionStats)
	auth.GET("/transactions/:id", handler.GetTransaction)
	auth.PUT("/transactions/:id", handler.UpdateTransaction)
	auth.DELETE("/transactions/:id", handler.DeleteTransaction)
	return r
}

func newTestTransactionHandler(txs *mockTransactionService, projections *mockProjectionService) *TransactionHandler {
	return NewTransactionHandler(txs, projections, &mockAuditService{})
}

// --- tests ---

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(userID string, input services.TransactionInput) (*services.TransactionResult, error) {
				got = input
				return &services.TransactionResult{Transaction: &models.Transaction{
					Base: models.Base{ID: testTxID}, UserID: userID, CategoryID: input.CategoryID,
					Type: input.Type, Amount: input.Amount, Date: input.Date,
				}}, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/transactions",
			`{"category_id":"`+testCategoryID+`","type":"EXPENSE","amount":4550,"description":"Lunch","date":"2025-01-15"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Date.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", got.Date)
		}
		result := parseJSON(t, rec)
		if _, ok := result["transaction"].(map[string]interface{}); !ok {
			t.Fatalf("expected transaction object, got %v", result)
		}
		if _, ok := result["warnings"]; ok {
			t.Error("expected no warnings key without warnings")
		}
	})

	t.Run("defaults the date to now", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(_ string, input services.TransactionInput) (*services.TransactionResult, error) {
				got = input
				return &services.TransactionResult{Transaction: &models.Transaction{}}, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		before := time.Now().Add(-time.Second)
		rec := doRequest(r, "POST", "/transactions", `{"category_id":"`+testCategoryID+`","type":"INCOME","amount":100}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if got.Date.Before(before) {
			t.Errorf("expected a current date, got %v", got.Date)
		}
	})

	t.Run("returns duplicate payment warnings", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(_ string, input services.TransactionInput) (*services.TransactionResult, error) {
				if input.BillID == nil || *input.BillID != testBillID {
					t.Errorf("expected bill %s, got %v", testBillID, input.BillID)
				}
				return &services.TransactionResult{
					Transaction: &models.Transaction{BillID: input.BillID},
					Warnings:    []services.Warning{{Code: services.WarningDuplicateBillPayment, Message: "already paid"}},
				}, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/transactions",
			`{"category_id":"`+testCategoryID+`","bill_id":"`+testBillID+`","type":"EXPENSE","amount":5000}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		warnings := parseJSON(t, rec)["warnings"].([]interface{})
		if len(warnings) != 1 || warnings[0].(map[string]interface{})["code"] != "DUPLICATE_BILL_PAYMENT" {
			t.Errorf("unexpected warnings %v", warnings)
		}
	})

	t.Run("returns 400 on invalid amount", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(_ string, _ services.TransactionInput) (*services.TransactionResult, error) {
				return nil, apperrors.Detailed(apperrors.ErrInvalidAmount, "transaction", "amount", "positive")
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/transactions", `{"category_id":"`+testCategoryID+`","type":"EXPENSE","amount":-5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_AMOUNT")
	})

	t.Run("returns 400 on category of another user", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(_ string, _ services.TransactionInput) (*services.TransactionResult, error) {
				return nil, apperrors.Detailed(apperrors.ErrCategoryMismatch, "transaction", "category_id", "same_owner")
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/transactions", `{"category_id":"`+testCategoryID+`","type":"EXPENSE","amount":5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_MISMATCH")
	})

	t.Run("returns 400 on malformed category ID", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "POST", "/transactions", `{"category_id":"12","type":"EXPENSE","amount":5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestTransactionHandler_GetTransactions(t *testing.T) {
	t.Run("parses every filter", func(t *testing.T) {
		var got services.TransactionFilter
		svc := &mockTransactionService{
			getUserTransactionsFn: func(_ string, _ pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/transactions?from_date=2025-01-01&to_date=2025-01-31&type=EXPENSE"+
			"&category_id="+testCategoryID+"&bill_id="+testBillID+"&min_amount=100&max_amount=900&search=coffee", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.FromDate == nil || got.ToDate == nil || got.Type == nil || got.CategoryID == nil || got.BillID == nil {
			t.Fatalf("expected all filters set, got %+v", got)
		}
		if *got.MinAmount != 100 || *got.MaxAmount != 900 || got.Search != "coffee" {
			t.Errorf("unexpected filter %+v", got)
		}
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/transactions?type=TRANSFER", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid min_amount", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/transactions?min_amount=ten", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on reversed dates", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "GET", "/transactions?from_date=2025-02-01&to_date=2025-01-01", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_DATE_RANGE")
	})
}

func TestTransactionHandler_GetTransactionStats(t *testing.T) {
	t.Run("returns the stats", func(t *testing.T) {
		projections := &mockProjectionService{
			transactionStatsFn: func(_ string, filter services.TransactionFilter) (*services.TransactionStats, error) {
				if filter.Type == nil || *filter.Type != models.TransactionTypeExpense {
					t.Errorf("expected EXPENSE filter, got %v", filter.Type)
				}
				return &services.TransactionStats{Count: 2, Sum: 300, Avg: 150, Min: 100, Max: 200}, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, projections))

		rec := doRequest(r, "GET", "/transactions/stats?type=EXPENSE", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		stats := parseJSON(t, rec)["stats"].(map[string]interface{})
		if stats["sum"] != float64(300) || stats["avg"] != float64(150) {
			t.Errorf("unexpected stats %v", stats)
		}
	})
}

func TestTransactionHandler_UpdateTransaction(t *testing.T) {
	t.Run("clears the bill link", func(t *testing.T) {
		var got services.TransactionUpdate
		svc := &mockTransactionService{
			updateTransactionFn: func(_, id string, update services.TransactionUpdate) (*services.TransactionResult, error) {
				got = update
				return &services.TransactionResult{Transaction: &models.Transaction{Base: models.Base{ID: id}}}, nil
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/transactions/"+testTxID, `{"clear_bill":true,"amount":700}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.ClearBill || got.Amount == nil || *got.Amount != 700 {
			t.Errorf("unexpected update %+v", got)
		}
	})

	t.Run("rejects bill_id with clear_bill", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/transactions/"+testTxID, `{"clear_bill":true,"bill_id":"`+testBillID+`"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockTransactionService{
			updateTransactionFn: func(_, _ string, _ services.TransactionUpdate) (*services.TransactionResult, error) {
				return nil, apperrors.NotFound("transaction")
			},
		}
		r := setupTransactionRouter(newTestTransactionHandler(svc, &mockProjectionService{}))

		rec := doRequest(r, "PUT", "/transactions/"+testTxID, `{"amount":700}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler_DeleteTransaction(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "DELETE", "/transactions/"+testTxID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid ID", func(t *testing.T) {
		r := setupTransactionRouter(newTestTransactionHandler(&mockTransactionService{}, &mockProjectionService{}))

		rec := doRequest(r, "DELETE", "/transactions/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
