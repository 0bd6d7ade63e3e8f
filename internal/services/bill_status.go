package services

import (
	"context"
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

// billSettlement counts how many of a bill's due dates are paid. Payments are
// applied oldest first to d0, d1, ...; settled is the number covered, so the
// first unpaid due date is Occurrence(anchor, settled).
type billSettlement struct {
	schedule Schedule
	anchor   time.Time
	asOf     time.Time
	settled  int
	cycle    int // largest k with dk <= asOf, -1 before the anchor
}

// settleBill loads the bill-linked transactions dated from the occurrence
// before the anchor up to asOf. excludeID leaves one transaction out so a
// write can be judged against the others.
func settleBill(ctx context.Context, l *store.Ledger, bill *models.Bill, asOf time.Time, excludeID string) (*billSettlement, error) {
	schedule, err := ScheduleFor(bill.Frequency)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	anchor := bill.DueDate.UTC()
	asOf = asOf.UTC()

	where := []store.Filter{
		store.Eq("bill_id", bill.ID),
		store.Gte("date", schedule.Occurrence(anchor, -1)),
		store.Lte("date", asOf),
	}
	if excludeID != "" {
		where = append(where, store.Ne("id", excludeID))
	}
	payments, err := l.Transactions.Count(ctx, store.And(where...))
	if err != nil {
		return nil, err
	}

	cycle := cycleIndex(schedule, anchor, asOf)
	if cycle < -1 {
		cycle = -1
	}
	return &billSettlement{
		schedule: schedule,
		anchor:   anchor,
		asOf:     asOf,
		settled:  int(payments),
		cycle:    cycle,
	}, nil
}

// nextDue is the index of the first due date on or after asOf.
func (s *billSettlement) nextDue() int {
	if s.cycle >= 0 && s.schedule.Occurrence(s.anchor, s.cycle).Equal(s.asOf) {
		return s.cycle
	}
	return s.cycle + 1
}

// overpaid reports whether one more payment would settle a due date past
// the next one.
func (s *billSettlement) overpaid() bool {
	return s.settled > s.nextDue()
}

// view maps the settlement to a status:
//   - OVERDUE when the first unpaid due date is before asOf;
//   - PAID when the current cycle's due date is settled, or the upcoming
//     one is settled before the anchor is reached;
//   - UPCOMING otherwise.
//
// Only the number of settled due dates matters, so paying early and paying
// late give the same status.
func (s *billSettlement) view(billID string) *BillStatusView {
	cycleStart := s.schedule.Occurrence(s.anchor, -1)
	if s.cycle >= 0 {
		cycleStart = s.schedule.Occurrence(s.anchor, s.cycle)
	}
	v := &BillStatusView{
		BillID:     billID,
		DueDate:    s.schedule.Occurrence(s.anchor, s.settled),
		CycleStart: cycleStart,
		Payments:   s.settled,
		AsOf:       s.asOf,
	}
	switch {
	case v.DueDate.Before(s.asOf):
		v.Status = models.BillStatusOverdue
	case s.settled > 0 && s.settled > s.cycle:
		v.Status = models.BillStatusPaid
	default:
		v.Status = models.BillStatusUpcoming
	}
	return v
}

// evaluateBill derives a bill's status at asOf from its payments.
func evaluateBill(ctx context.Context, l *store.Ledger, bill *models.Bill, asOf time.Time, excludeID string) (*BillStatusView, error) {
	s, err := settleBill(ctx, l, bill, asOf, excludeID)
	if err != nil {
		return nil, err
	}
	return s.view(bill.ID), nil
}
