// Package events publishes domain events after the write that caused them has
// committed. Delivery is best effort: a failed publish is logged and never
// undoes or fails the write.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fintrack/internal/logger"
)

// Type names a domain event. It doubles as the AMQP routing key.
type Type string

const (
	AllocationUpserted   Type = "allocation.upserted"
	AllocationRemoved    Type = "allocation.removed"
	TransactionRecorded  Type = "transaction.recorded"
	BillDuplicatePayment Type = "bill.duplicate_payment"
	BillOverdue          Type = "bill.overdue"
	GoalCompleted        Type = "goal.completed"
)

// Event is the JSON envelope sent on the wire.
type Event struct {
	Type       Type           `json:"type"`
	UserID     string         `json:"user_id"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event stamped with the current time.
func New(t Type, userID, entityID string, payload map[string]any) Event {
	return Event{Type: t, UserID: userID, EntityID: entityID, OccurredAt: time.Now().UTC(), Payload: payload}
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends domain events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes e and logs instead of returning a failure.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warnw("failed to publish event",
			"error", err,
			"type", e.Type,
			"entity_id", e.EntityID,
		)
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
