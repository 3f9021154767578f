package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aura-streams/backend/internal/apperr"
)

func TestError_IsMatchesByCode(t *testing.T) {
	t.Parallel()
	err := apperr.New(apperr.CodeStreamNotActive, "stream 7 is cancelled")
	assert.ErrorIs(t, err, apperr.ErrStreamNotActive)
	assert.NotErrorIs(t, err, apperr.ErrStreamIsCancelled)
}

func TestError_WrapKeepsCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")
	err := apperr.Wrap(apperr.CodeInvariantViolation, "save stream", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)
	assert.Equal(t, "save stream: connection reset", err.Error())
}

func TestCodeOf(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("withdraw: %w", apperr.ErrInsufficientBalance)
	assert.Equal(t, apperr.CodeInsufficientBalance, apperr.CodeOf(wrapped))
	assert.Equal(t, apperr.CodeUnknown, apperr.CodeOf(errors.New("boom")))
}

func TestCode_HTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code apperr.Code
		want int
	}{
		{apperr.CodeInvalidTimeframe, http.StatusBadRequest},
		{apperr.CodeUnauthorized, http.StatusForbidden},
		{apperr.CodeMissingCapability, http.StatusForbidden},
		{apperr.CodeStreamNotFound, http.StatusNotFound},
		{apperr.CodeMilestoneNotSet, http.StatusConflict},
		{apperr.CodeInsufficientAllowance, http.StatusUnprocessableEntity},
		{apperr.CodeInvariantViolation, http.StatusInternalServerError},
		{apperr.CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
