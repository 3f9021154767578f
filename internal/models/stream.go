package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Status is the lifecycle tag of a stream. It is a projection of the
// stream's primitive fields, see Stream.Project.
type Status string

const (
	StatusActive            Status = "active"
	StatusMilestoneUnlocked Status = "milestone_unlocked"
	StatusPaused            Status = "paused"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// Terminal reports whether no further state-changing operation can succeed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMilestoneUnlocked, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Stream is a single sender->recipient vesting agreement: linear accrual of
// DepositAmount over [StartTime, StopTime) plus an optional one-time milestone.
type Stream struct {
	ID        uint64    `json:"id"`
	Sender    uuid.UUID `json:"sender"`
	Recipient uuid.UUID `json:"recipient"`

	DepositAmount    uint256.Int `json:"-"`
	MilestoneAmount  uint256.Int `json:"-"`
	RatePerSecond    uint256.Int `json:"-"`
	WithdrawnAmount  uint256.Int `json:"-"`
	RemainingBalance uint256.Int `json:"-"`

	StartTime time.Time `json:"start_time"`
	StopTime  time.Time `json:"stop_time"`
	PauseTime time.Time `json:"pause_time"` // zero when not paused

	IsPaused            bool   `json:"is_paused"`
	IsMilestoneReleased bool   `json:"is_milestone_released"`
	IsCancelled         bool   `json:"-"`
	Status              Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project computes the lifecycle status from the primitive fields. Completion
// requires the linear schedule to be drained and the milestone (if any) paid.
func (s *Stream) Project() Status {
	switch {
	case s.IsCancelled:
		return StatusCancelled
	case s.RemainingBalance.IsZero() && (s.IsMilestoneReleased || s.MilestoneAmount.IsZero()):
		return StatusCompleted
	case s.IsPaused:
		return StatusPaused
	case s.IsMilestoneReleased:
		return StatusMilestoneUnlocked
	default:
		return StatusActive
	}
}

// Custody returns the amount the custody account holds on behalf of this stream.
func (s *Stream) Custody() uint256.Int {
	held := s.RemainingBalance
	if !s.IsMilestoneReleased {
		held.Add(&held, &s.MilestoneAmount)
	}
	return held
}

// StreamView is the JSON representation of a Stream. Amounts are decimal strings.
type StreamView struct {
	ID                  uint64     `json:"id"`
	Sender              uuid.UUID  `json:"sender"`
	Recipient           uuid.UUID  `json:"recipient"`
	DepositAmount       string     `json:"deposit_amount"`
	MilestoneAmount     string     `json:"milestone_amount"`
	RatePerSecond       string     `json:"rate_per_second"`
	WithdrawnAmount     string     `json:"withdrawn_amount"`
	RemainingBalance    string     `json:"remaining_balance"`
	StartTime           time.Time  `json:"start_time"`
	StopTime            time.Time  `json:"stop_time"`
	PauseTime           *time.Time `json:"pause_time,omitempty"`
	IsPaused            bool       `json:"is_paused"`
	IsMilestoneReleased bool       `json:"is_milestone_released"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// View converts s to its API representation.
func (s *Stream) View() StreamView {
	v := StreamView{
		ID:                  s.ID,
		Sender:              s.Sender,
		Recipient:           s.Recipient,
		DepositAmount:       s.DepositAmount.Dec(),
		MilestoneAmount:     s.MilestoneAmount.Dec(),
		RatePerSecond:       s.RatePerSecond.Dec(),
		WithdrawnAmount:     s.WithdrawnAmount.Dec(),
		RemainingBalance:    s.RemainingBalance.Dec(),
		StartTime:           s.StartTime,
		StopTime:            s.StopTime,
		IsPaused:            s.IsPaused,
		IsMilestoneReleased: s.IsMilestoneReleased,
		Status:              s.Status,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
	if !s.PauseTime.IsZero() {
		t := s.PauseTime
		v.PauseTime = &t
	}
	return v
}
