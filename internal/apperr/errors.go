// Package apperr provides coded domain errors shared by the ledger packages.
package apperr

import "errors"

// Error is the domain error type with a machine-readable code.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message, safe to return to callers
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Sentinel errors, one per code, for errors.Is comparisons.
var (
	ErrUnauthorized      = New(CodeUnauthorized, "caller is not permitted to act on this stream")
	ErrMissingCapability = New(CodeMissingCapability, "caller lacks the required capability")

	ErrInvalidRecipientAddress = New(CodeInvalidRecipientAddress, "invalid recipient")
	ErrInvalidDepositAmount    = New(CodeInvalidDepositAmount, "invalid deposit amount")
	ErrInvalidTimeframe        = New(CodeInvalidTimeframe, "invalid timeframe")
	ErrInvalidTokenAddress     = New(CodeInvalidTokenAddress, "invalid custody account")
	ErrInvalidWithdrawAmount   = New(CodeInvalidWithdrawAmount, "invalid withdraw amount")
	ErrInvalidCapability       = New(CodeInvalidCapability, "unknown capability")

	ErrStreamNotFound           = New(CodeStreamNotFound, "stream not found")
	ErrStreamNotActive          = New(CodeStreamNotActive, "stream is not active")
	ErrStreamAlreadyPaused      = New(CodeStreamAlreadyPaused, "stream is already paused")
	ErrStreamNotPaused          = New(CodeStreamNotPaused, "stream is not paused")
	ErrStreamIsCancelled        = New(CodeStreamIsCancelled, "stream is cancelled")
	ErrMilestoneAlreadyReleased = New(CodeMilestoneAlreadyReleased, "milestone already released")
	ErrMilestoneNotSet          = New(CodeMilestoneNotSet, "stream has no milestone")
	ErrReentrantCall            = New(CodeReentrantCall, "re-entrant call rejected")

	ErrInsufficientBalance   = New(CodeInsufficientBalance, "insufficient balance")
	ErrInsufficientFunds     = New(CodeInsufficientFunds, "custody ledger: insufficient funds")
	ErrInsufficientAllowance = New(CodeInsufficientAllowance, "custody ledger: insufficient allowance")

	ErrInvariantViolation = New(CodeInvariantViolation, "stream invariant violated")
)
