package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a stream state transition.
type EventType string

const (
	EventStreamCreated EventType = "StreamCreated"
	EventWithdrawn     EventType = "Withdrawn"
	EventStreamPaused  EventType = "StreamPaused"
	EventStreamResumed EventType = "StreamResumed"
	EventStreamStopped EventType = "StreamStopped"
	EventDepositAdded  EventType = "DepositAdded"
)

// Event is emitted in the same atomic step as the transition it records.
// Amount is the deposit for StreamCreated and DepositAdded, and the payout
// for Withdrawn and StreamStopped. Refund is only set on StreamStopped.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	StreamID   StreamID         `json:"stream_id"`
	Type       EventType        `json:"type"`
	Actor      Address          `json:"actor"`
	Employer   Address          `json:"employer"`
	Worker     Address          `json:"worker"`
	Amount     decimal.Decimal  `json:"amount"`
	Rate       *decimal.Decimal `json:"rate_per_second,omitempty"`
	Refund     *decimal.Decimal `json:"refund,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewEvent builds an event for s with the shared party fields filled in.
func NewEvent(s *Stream, typ EventType, actor Address, amount decimal.Decimal, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		StreamID:   s.ID,
		Type:       typ,
		Actor:      actor,
		Employer:   s.Employer,
		Worker:     s.Worker,
		Amount:     amount,
		OccurredAt: at,
	}
}
