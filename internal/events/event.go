// Package events carries the advisory notifications the lifecycle manager
// emits after each committed operation. Events are never a source of truth.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Kind names an event.
type Kind string

const (
	KindStreamCreated     Kind = "StreamCreated"
	KindWithdraw          Kind = "Withdraw"
	KindMilestoneReleased Kind = "MilestoneReleased"
	KindStreamPaused      Kind = "StreamPaused"
	KindStreamResumed     Kind = "StreamResumed"
	KindStreamCancelled   Kind = "StreamCancelled"
)

// Event is the envelope shared by every emitter. Amounts are decimal strings.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	Kind            Kind       `json:"kind"`
	StreamID        uint64     `json:"stream_id"`
	Sender          *uuid.UUID `json:"sender,omitempty"`
	Recipient       *uuid.UUID `json:"recipient,omitempty"`
	Amount          string     `json:"amount,omitempty"`
	SenderRefund    string     `json:"sender_refund,omitempty"`
	RecipientAmount string     `json:"recipient_amount,omitempty"`
	At              time.Time  `json:"at"`
}

func newEvent(kind Kind, streamID uint64, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: kind, StreamID: streamID, At: at}
}

// StreamCreated is emitted once a stream is funded.
func StreamCreated(streamID uint64, sender, recipient uuid.UUID, at time.Time) Event {
	e := newEvent(KindStreamCreated, streamID, at)
	e.Sender, e.Recipient = &sender, &recipient
	return e
}

// Withdraw is emitted when the recipient draws from the linear schedule.
func Withdraw(streamID uint64, recipient uuid.UUID, amount uint256.Int, at time.Time) Event {
	e := newEvent(KindWithdraw, streamID, at)
	e.Recipient = &recipient
	e.Amount = amount.Dec()
	return e
}

// MilestoneReleased is emitted when an auditor unlocks the milestone.
func MilestoneReleased(streamID uint64, amount uint256.Int, at time.Time) Event {
	e := newEvent(KindMilestoneReleased, streamID, at)
	e.Amount = amount.Dec()
	return e
}

// StreamPaused is emitted when the sender freezes the vesting clock.
func StreamPaused(streamID uint64, at time.Time) Event {
	return newEvent(KindStreamPaused, streamID, at)
}

// StreamResumed is emitted when the sender restarts the vesting clock.
func StreamResumed(streamID uint64, at time.Time) Event {
	return newEvent(KindStreamResumed, streamID, at)
}

// StreamCancelled is emitted with the settlement split of a cancellation.
func StreamCancelled(streamID uint64, senderRefund, recipientAmount uint256.Int, at time.Time) Event {
	e := newEvent(KindStreamCancelled, streamID, at)
	e.SenderRefund = senderRefund.Dec()
	e.RecipientAmount = recipientAmount.Dec()
	return e
}

// Emitter delivers events to observers.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// Multi fans an event out to every emitter and joins their errors.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, em := range m {
		if err := em.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(context.Context, Event) error { return nil }
