package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-streams/backend/internal/models"
)

func TestStream_Project(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    models.Stream
		want models.Status
	}{
		{"fresh", models.Stream{RemainingBalance: models.Amount(5)}, models.StatusActive},
		{"paused", models.Stream{RemainingBalance: models.Amount(5), IsPaused: true}, models.StatusPaused},
		{"milestone released", models.Stream{RemainingBalance: models.Amount(5), IsMilestoneReleased: true}, models.StatusMilestoneUnlocked},
		{"paused after release", models.Stream{RemainingBalance: models.Amount(5), IsMilestoneReleased: true, IsPaused: true}, models.StatusPaused},
		{"drained without milestone", models.Stream{}, models.StatusCompleted},
		{"drained with milestone held", models.Stream{MilestoneAmount: models.Amount(3)}, models.StatusActive},
		{"drained and released", models.Stream{MilestoneAmount: models.Amount(3), IsMilestoneReleased: true}, models.StatusCompleted},
		{"cancelled wins", models.Stream{IsCancelled: true, IsPaused: true}, models.StatusCancelled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.Project(), tt.name)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, models.StatusCompleted.Terminal())
	assert.True(t, models.StatusCancelled.Terminal())
	assert.False(t, models.StatusPaused.Terminal())
	assert.True(t, models.StatusMilestoneUnlocked.Valid())
	assert.False(t, models.Status("frozen").Valid())
}

func TestStream_CustodyAndView(t *testing.T) {
	t.Parallel()

	s := models.Stream{
		ID:               7,
		DepositAmount:    models.Amount(1000),
		MilestoneAmount:  models.Amount(250),
		RemainingBalance: models.Amount(600),
		WithdrawnAmount:  models.Amount(400),
	}
	held := s.Custody()
	assert.Equal(t, uint64(850), held.Uint64())

	s.IsMilestoneReleased = true
	held = s.Custody()
	assert.Equal(t, uint64(600), held.Uint64())

	v := s.View()
	assert.Equal(t, "1000", v.DepositAmount)
	assert.Equal(t, "400", v.WithdrawnAmount)
	assert.Nil(t, v.PauseTime)

	s.PauseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, s.View().PauseTime)
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	v, err := models.ParseAmount("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = models.ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", v.Dec())

	for _, bad := range []string{"-1", "1.5", "abc", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		_, err := models.ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
