// Package vesting computes how much of a stream has accrued at a point in time.
// Nothing in this package mutates a stream.
package vesting

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/aura-streams/backend/internal/models"
)

// EffectiveTime returns the clock the schedule is evaluated at: now, frozen at
// the pause time while paused, and never past the stop time.
func EffectiveTime(s *models.Stream, now time.Time) time.Time {
	t := now
	if s.IsPaused && s.PauseTime.Before(t) {
		t = s.PauseTime
	}
	if s.StopTime.Before(t) {
		t = s.StopTime
	}
	return t
}

// Claimable returns the amount the recipient may withdraw at now.
// Once the effective time reaches the stop time the whole remaining balance is
// claimable, so floor division of the rate never strands dust.
func Claimable(s *models.Stream, now time.Time) uint256.Int {
	if s.Status == models.StatusCancelled || s.IsCancelled || !now.After(s.StartTime) {
		return uint256.Int{}
	}
	t := EffectiveTime(s, now)
	if !t.After(s.StartTime) {
		return uint256.Int{}
	}
	if !t.Before(s.StopTime) {
		return s.RemainingBalance
	}

	elapsed := uint256.NewInt(uint64(t.Unix() - s.StartTime.Unix()))
	earned, overflow := new(uint256.Int).MulOverflow(elapsed, &s.RatePerSecond)
	if overflow || earned.Gt(&s.DepositAmount) {
		earned.Set(&s.DepositAmount)
	}
	if !earned.Gt(&s.WithdrawnAmount) {
		return uint256.Int{}
	}
	return *earned.Sub(earned, &s.WithdrawnAmount)
}

// Vested returns the cumulative amount released by the linear schedule at now,
// i.e. what has been withdrawn plus what is currently claimable.
func Vested(s *models.Stream, now time.Time) uint256.Int {
	c := Claimable(s, now)
	return *c.Add(&c, &s.WithdrawnAmount)
}
