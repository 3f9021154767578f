package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeMissingCapability Code = "MISSING_CAPABILITY"

	// Validation errors
	CodeInvalidRecipientAddress Code = "INVALID_RECIPIENT_ADDRESS"
	CodeInvalidDepositAmount    Code = "INVALID_DEPOSIT_AMOUNT"
	CodeInvalidTimeframe        Code = "INVALID_TIMEFRAME"
	CodeInvalidTokenAddress     Code = "INVALID_TOKEN_ADDRESS"
	CodeInvalidWithdrawAmount   Code = "INVALID_WITHDRAW_AMOUNT"
	CodeInvalidCapability       Code = "INVALID_CAPABILITY"

	// Lifecycle state errors
	CodeStreamNotFound           Code = "STREAM_NOT_FOUND"
	CodeStreamNotActive          Code = "STREAM_NOT_ACTIVE"
	CodeStreamAlreadyPaused      Code = "STREAM_ALREADY_PAUSED"
	CodeStreamNotPaused          Code = "STREAM_NOT_PAUSED"
	CodeStreamIsCancelled        Code = "STREAM_IS_CANCELLED"
	CodeMilestoneAlreadyReleased Code = "MILESTONE_ALREADY_RELEASED"
	CodeMilestoneNotSet          Code = "MILESTONE_NOT_SET"
	CodeReentrantCall            Code = "REENTRANT_CALL"

	// Resource errors
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"

	// Internal consistency errors
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// 400 - caller-correctable input
	case CodeInvalidRecipientAddress,
		CodeInvalidDepositAmount,
		CodeInvalidTimeframe,
		CodeInvalidTokenAddress,
		CodeInvalidWithdrawAmount,
		CodeInvalidCapability:
		return http.StatusBadRequest

	// 403 - wrong principal or missing role
	case CodeUnauthorized, CodeMissingCapability:
		return http.StatusForbidden

	case CodeStreamNotFound:
		return http.StatusNotFound

	// 409 - operation not valid in the current lifecycle state
	case CodeStreamNotActive,
		CodeStreamAlreadyPaused,
		CodeStreamNotPaused,
		CodeStreamIsCancelled,
		CodeMilestoneAlreadyReleased,
		CodeMilestoneNotSet,
		CodeReentrantCall:
		return http.StatusConflict

	// 422 - operation cannot be funded
	case CodeInsufficientBalance,
		CodeInsufficientFunds,
		CodeInsufficientAllowance:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
