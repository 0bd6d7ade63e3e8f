package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

const sweepBatchSize = 100

// billService handles bill-related business logic.
type billService struct {
	ledger    *store.Ledger
	gate      *ConsistencyGate
	publisher events.Publisher
}

// NewBillService creates a new BillServicer.
func NewBillService(ledger *store.Ledger, gate *ConsistencyGate, publisher events.Publisher) BillServicer {
	return &billService{ledger: ledger, gate: gate, publisher: publisher}
}

func validateBill(name string, amount int64, dueDate time.Time, freq models.BillFrequency) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "bill name is required")
	}
	if amount <= 0 {
		return apperrors.Detailed(apperrors.ErrInvalidAmount, "bill", "amount", "positive")
	}
	if dueDate.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "bill due date is required")
	}
	if _, err := ScheduleFor(freq); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}

// CreateBill creates a recurring bill anchored at input.DueDate.
func (s *billService) CreateBill(ctx context.Context, userID string, input BillInput) (*models.Bill, error) {
	if err := validateBill(input.Name, input.Amount, input.DueDate, input.Frequency); err != nil {
		return nil, err
	}

	bill := &models.Bill{
		UserID:     userID,
		CategoryID: input.CategoryID,
		Name:       strings.TrimSpace(input.Name),
		Amount:     input.Amount,
		DueDate:    input.DueDate.UTC(),
		Frequency:  input.Frequency,
		Autopay:    input.Autopay,
	}
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		if _, err := s.gate.RequireCategory(ctx, tx, "bill", userID, bill.CategoryID); err != nil {
			return err
		}
		return tx.Bills.Create(ctx, bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// GetUserBills returns a paginated list of the user's bills by due date.
func (s *billService) GetUserBills(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Bill], error) {
	return findPage(ctx, s.ledger.Bills, store.Eq("user_id", userID),
		[]store.Sort{{Field: "due_date"}, {Field: "id"}}, page)
}

// GetBillByID returns a bill by ID if it belongs to the user.
func (s *billService) GetBillByID(ctx context.Context, userID, billID string) (*models.Bill, error) {
	return findOwned(ctx, s.ledger.Bills, userID, billID)
}

// UpdateBill updates a bill's fields.
func (s *billService) UpdateBill(ctx context.Context, userID, billID string, update BillUpdate) (*models.Bill, error) {
	var out *models.Bill
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		bill, err := findOwned(ctx, tx.Bills, userID, billID)
		if err != nil {
			return err
		}

		next := *bill
		fields := make(map[string]any)
		if update.CategoryID != nil {
			if _, err := s.gate.RequireCategory(ctx, tx, "bill", userID, *update.CategoryID); err != nil {
				return err
			}
			fields["category_id"] = *update.CategoryID
		}
		if update.Name != nil {
			next.Name = strings.TrimSpace(*update.Name)
			fields["name"] = next.Name
		}
		if update.Amount != nil {
			next.Amount = *update.Amount
			fields["amount"] = next.Amount
		}
		if update.DueDate != nil {
			next.DueDate = update.DueDate.UTC()
			fields["due_date"] = next.DueDate
		}
		if update.Frequency != nil {
			next.Frequency = *update.Frequency
			fields["frequency"] = next.Frequency
		}
		if update.Autopay != nil {
			fields["autopay"] = *update.Autopay
		}
		if err := validateBill(next.Name, next.Amount, next.DueDate, next.Frequency); err != nil {
			return err
		}

		out, err = tx.Bills.Update(ctx, billID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBill deletes a bill. Payments recorded against it stay in the ledger
// with their bill link cleared.
func (s *billService) DeleteBill(ctx context.Context, userID, billID string) error {
	if _, err := s.GetBillByID(ctx, userID, billID); err != nil {
		return err
	}
	return s.ledger.Bills.Delete(ctx, billID)
}

// SweepOverdue publishes bill.overdue for every bill that is overdue at asOf
// and whose owner wants bill reminders. It returns the number of events sent.
func (s *billService) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	log := logger.Named("bill-sweep")
	reminders := make(map[string]bool)
	sent := 0

	for skip := 0; ; skip += sweepBatchSize {
		bills, err := s.ledger.Bills.FindMany(ctx, store.Query{
			OrderBy: []store.Sort{{Field: "id"}},
			Skip:    skip,
			Take:    sweepBatchSize,
		})
		if err != nil {
			return sent, err
		}

		for i := range bills {
			bill := &bills[i]
			wants, ok := reminders[bill.UserID]
			if !ok {
				user, err := s.ledger.Users.FindUnique(ctx, bill.UserID)
				switch {
				case errors.Is(err, apperrors.ErrNotFound):
					// owner deleted mid-sweep; the cascade removes the bill
					log.Warnw("skipping bill without owner", "bill_id", bill.ID, "user_id", bill.UserID)
				case err != nil:
					return sent, err
				default:
					wants = user.BillReminders
				}
				reminders[bill.UserID] = wants
			}
			if !wants {
				continue
			}

			view, err := evaluateBill(ctx, s.ledger, bill, asOf, "")
			if err != nil {
				return sent, err
			}
			if view.Status != models.BillStatusOverdue {
				continue
			}
			events.Emit(ctx, s.publisher, events.New(events.BillOverdue, bill.UserID, bill.ID, map[string]any{
				"due_date": view.DueDate,
				"amount":   bill.Amount,
			}))
			sent++
		}

		if len(bills) < sweepBatchSize {
			break
		}
	}

	log.Infow("bill sweep finished", "as_of", asOf, "overdue", sent)
	return sent, nil
}
