package vesting_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/internal/vesting"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newStream(deposit uint64, duration time.Duration) *models.Stream {
	s := &models.Stream{
		ID:               1,
		DepositAmount:    models.Amount(deposit),
		RemainingBalance: models.Amount(deposit),
		RatePerSecond:    models.Amount(deposit / uint64(duration/time.Second)),
		StartTime:        start,
		StopTime:         start.Add(duration),
	}
	s.Status = s.Project()
	return s
}

func at(d time.Duration) time.Time { return start.Add(d) }

func TestClaimable_BeforeStartIsZero(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	before := vesting.Claimable(s, start.Add(-time.Hour))
	assert.True(t, before.IsZero())
	atStart := vesting.Claimable(s, start)
	assert.True(t, atStart.IsZero())
}

func TestClaimable_Linear(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	got := vesting.Claimable(s, at(500*time.Second))
	assert.Equal(t, uint64(500), got.Uint64())
}

func TestClaimable_SubtractsWithdrawn(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	s.WithdrawnAmount = models.Amount(300)
	s.RemainingBalance = models.Amount(700)
	got := vesting.Claimable(s, at(500*time.Second))
	assert.Equal(t, uint64(200), got.Uint64())

	got = vesting.Claimable(s, at(200*time.Second))
	assert.True(t, got.IsZero(), "withdrawn ahead of schedule saturates at zero")
}

func TestClaimable_FullWindowReturnsRemainingBalance(t *testing.T) {
	t.Parallel()
	// 1000 over 300s floors to 3/s, leaving 100 units of dust.
	s := newStream(1000, 300*time.Second)
	assert.Equal(t, uint64(3), s.RatePerSecond.Uint64())

	before := vesting.Claimable(s, at(299*time.Second))
	assert.Equal(t, uint64(897), before.Uint64())

	for _, d := range []time.Duration{300 * time.Second, 301 * time.Second, 48 * time.Hour} {
		got := vesting.Claimable(s, at(d))
		assert.Equal(t, uint64(1000), got.Uint64())
	}

	s.WithdrawnAmount = models.Amount(400)
	s.RemainingBalance = models.Amount(600)
	got := vesting.Claimable(s, at(time.Hour))
	assert.Equal(t, uint64(600), got.Uint64())
}

func TestClaimable_Monotonic(t *testing.T) {
	t.Parallel()
	s := newStream(7919, 977*time.Second)
	prev := uint256.Int{}
	for sec := 0; sec <= 1000; sec++ {
		got := vesting.Claimable(s, at(time.Duration(sec)*time.Second))
		assert.False(t, got.Lt(&prev), "claimable decreased at +%ds", sec)
		prev = got
	}
}

func TestClaimable_PauseFreezes(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	s.IsPaused = true
	s.PauseTime = at(200 * time.Second)
	s.Status = s.Project()

	for _, d := range []time.Duration{200 * time.Second, 201 * time.Second, 900 * time.Second, 5000 * time.Second} {
		got := vesting.Claimable(s, at(d))
		assert.Equal(t, uint64(200), got.Uint64(), "at +%s", d)
	}
	// Before the pause point the clock still runs normally.
	got := vesting.Claimable(s, at(100*time.Second))
	assert.Equal(t, uint64(100), got.Uint64())
}

func TestClaimable_PausedBeforeStart(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	s.IsPaused = true
	s.PauseTime = start.Add(-time.Minute)
	got := vesting.Claimable(s, at(time.Hour))
	assert.True(t, got.IsZero())
}

func TestClaimable_CancelledIsZero(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	s.IsCancelled = true
	s.Status = s.Project()
	got := vesting.Claimable(s, at(500*time.Second))
	assert.True(t, got.IsZero())
}

func TestClaimable_DoesNotMutate(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	before := *s
	_ = vesting.Claimable(s, at(2000*time.Second))
	_ = vesting.Vested(s, at(2000*time.Second))
	assert.Equal(t, before, *s)
}

func TestVested(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	s.WithdrawnAmount = models.Amount(100)
	s.RemainingBalance = models.Amount(900)
	got := vesting.Vested(s, at(250*time.Second))
	assert.Equal(t, uint64(250), got.Uint64())
}

func TestEffectiveTime(t *testing.T) {
	t.Parallel()
	s := newStream(1000, 1000*time.Second)
	assert.Equal(t, at(10*time.Second), vesting.EffectiveTime(s, at(10*time.Second)))
	assert.Equal(t, s.StopTime, vesting.EffectiveTime(s, at(2000*time.Second)))

	s.IsPaused = true
	s.PauseTime = at(50 * time.Second)
	assert.Equal(t, s.PauseTime, vesting.EffectiveTime(s, at(60*time.Second)))
}
