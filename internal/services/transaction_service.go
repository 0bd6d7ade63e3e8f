package services

import (
	"context"

	"fintrack/internal/events"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// transactionService records ledger entries through the consistency gate.
type transactionService struct {
	ledger    *store.Ledger
	gate      *ConsistencyGate
	publisher events.Publisher
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(ledger *store.Ledger, gate *ConsistencyGate, publisher events.Publisher) TransactionServicer {
	return &transactionService{ledger: ledger, gate: gate, publisher: publisher}
}

// CreateTransaction records a transaction. A manual bill payment that would
// settle a due date past the next one is recorded with a warning.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, input TransactionInput) (*TransactionResult, error) {
	t := &models.Transaction{
		UserID:      userID,
		CategoryID:  input.CategoryID,
		BillID:      input.BillID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Notes:       input.Notes,
		Date:        input.Date.UTC(),
	}

	var warning *Warning
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		bill, err := s.gate.CheckTransaction(ctx, tx, t)
		if err != nil {
			return err
		}
		if err := tx.Transactions.Create(ctx, t); err != nil {
			return err
		}
		warning, err = s.gate.BillPaymentWarning(ctx, tx, bill, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, t, warning)
	return newTransactionResult(t, warning), nil
}

// GetUserTransactions returns a paginated list of the user's transactions, newest first.
func (s *transactionService) GetUserTransactions(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	filter TransactionFilter,
) (*pagination.PageResponse[models.Transaction], error) {
	return findPage(ctx, s.ledger.Transactions, transactionWhere(userID, filter),
		[]store.Sort{{Field: "date", Desc: true}, {Field: "id", Desc: true}}, page)
}

// transactionWhere builds the filter for a user's transactions.
func transactionWhere(userID string, f TransactionFilter) store.Filter {
	where := []store.Filter{store.Eq("user_id", userID)}
	if f.FromDate != nil {
		where = append(where, store.Gte("date", f.FromDate.UTC()))
	}
	if f.ToDate != nil {
		where = append(where, store.Lte("date", f.ToDate.UTC()))
	}
	if f.Type != nil {
		where = append(where, store.Eq("type", *f.Type))
	}
	if f.CategoryID != nil {
		where = append(where, store.Eq("category_id", *f.CategoryID))
	}
	if f.BillID != nil {
		where = append(where, store.Eq("bill_id", *f.BillID))
	}
	if f.MinAmount != nil {
		where = append(where, store.Gte("amount", *f.MinAmount))
	}
	if f.MaxAmount != nil {
		where = append(where, store.Lte("amount", *f.MaxAmount))
	}
	if f.Search != "" {
		where = append(where, store.Or(
			store.Where("description", store.OpContains, f.Search),
			store.Where("notes", store.OpContains, f.Search),
		))
	}
	return store.And(where...)
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	return findOwned(ctx, s.ledger.Transactions, userID, transactionID)
}

// UpdateTransaction changes a transaction and revalidates it as a whole.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, update TransactionUpdate) (*TransactionResult, error) {
	var (
		out     *models.Transaction
		warning *Warning
	)
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		current, err := findOwned(ctx, tx.Transactions, userID, transactionID)
		if err != nil {
			return err
		}

		next := *current
		fields := make(map[string]any)
		if update.CategoryID != nil {
			next.CategoryID = *update.CategoryID
			fields["category_id"] = next.CategoryID
		}
		switch {
		case update.ClearBill:
			next.BillID = nil
			fields["bill_id"] = nil
		case update.BillID != nil:
			billID := *update.BillID
			next.BillID = &billID
			fields["bill_id"] = billID
		}
		if update.Type != nil {
			next.Type = *update.Type
			fields["type"] = next.Type
		}
		if update.Amount != nil {
			next.Amount = *update.Amount
			fields["amount"] = next.Amount
		}
		if update.Description != nil {
			next.Description = *update.Description
			fields["description"] = next.Description
		}
		if update.Notes != nil {
			next.Notes = *update.Notes
			fields["notes"] = next.Notes
		}
		if update.Date != nil {
			next.Date = update.Date.UTC()
			fields["date"] = next.Date
		}

		bill, err := s.gate.CheckTransaction(ctx, tx, &next)
		if err != nil {
			return err
		}
		out, err = tx.Transactions.Update(ctx, transactionID, fields)
		if err != nil {
			return err
		}
		warning, err = s.gate.BillPaymentWarning(ctx, tx, bill, out)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, out, warning)
	return newTransactionResult(out, warning), nil
}

// DeleteTransaction deletes a transaction.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if _, err := s.GetTransactionByID(ctx, userID, transactionID); err != nil {
		return err
	}
	return s.ledger.Transactions.Delete(ctx, transactionID)
}

func (s *transactionService) emit(ctx context.Context, t *models.Transaction, warning *Warning) {
	payload := map[string]any{
		"category_id": t.CategoryID,
		"type":        t.Type,
		"amount":      t.Amount,
		"date":        t.Date,
	}
	if t.BillID != nil {
		payload["bill_id"] = *t.BillID
	}
	events.Emit(ctx, s.publisher, events.New(events.TransactionRecorded, t.UserID, t.ID, payload))

	if warning != nil && t.BillID != nil {
		events.Emit(ctx, s.publisher, events.New(events.BillDuplicatePayment, t.UserID, *t.BillID, map[string]any{
			"transaction_id": t.ID,
		}))
	}
}

func newTransactionResult(t *models.Transaction, warning *Warning) *TransactionResult {
	result := &TransactionResult{Transaction: t}
	if warning != nil {
		result.Warnings = []Warning{*warning}
	}
	return result
}
