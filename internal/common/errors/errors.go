// Package errors provides standardized error handling for the recurring
// deal scheduler.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSeriesNotFound       ErrorCode = "SERIES_NOT_FOUND"
	ErrCodeSeriesNotActive      ErrorCode = "SERIES_NOT_ACTIVE"
	ErrCodeSeriesClaimFailed    ErrorCode = "SERIES_CLAIM_FAILED"
	ErrCodeCadenceInvalid       ErrorCode = "CADENCE_INVALID"
	ErrCodeEndConditionInvalid  ErrorCode = "END_CONDITION_INVALID"
	ErrCodeLineItemsInvalid     ErrorCode = "LINE_ITEMS_INVALID"
	ErrCodeDealGenerationFailed ErrorCode = "DEAL_GENERATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSeriesNotFoundError creates a non-retryable lookup error.
func NewSeriesNotFoundError(seriesID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSeriesNotFound,
		Message:   "Recurring series not found",
		Details:   fmt.Sprintf("seriesId: %s", seriesID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSeriesNotActiveError creates a non-retryable state error.
func NewSeriesNotActiveError(seriesID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSeriesNotActive,
		Message:   "Recurring series is not in an active state",
		Details:   fmt.Sprintf("seriesId: %s, status: %s", seriesID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSeriesClaimFailedError creates a retryable lease contention error.
func NewSeriesClaimFailedError(seriesID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSeriesClaimFailed,
		Message:   "Series is already claimed by another scheduler run",
		Details:   fmt.Sprintf("seriesId: %s", seriesID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCadenceInvalidError creates a non-retryable cadence validation error.
func NewCadenceInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCadenceInvalid,
		Message:   "Invalid recurrence cadence configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEndConditionInvalidError creates a non-retryable end condition error.
func NewEndConditionInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEndConditionInvalid,
		Message:   "Invalid series end condition",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLineItemsInvalidError creates a non-retryable payload validation error.
func NewLineItemsInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLineItemsInvalid,
		Message:   "Invalid line items payload",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDealGenerationFailedError creates a retryable generation error.
func NewDealGenerationFailedError(seriesID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDealGenerationFailed,
		Message:   "Deal generation failed for recurring series",
		Details:   fmt.Sprintf("seriesId: %s, error: %s", seriesID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Error Classification
// ==========================

// IsRetryable reports whether err should be retried on a later scan.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsNotFound reports whether err is a missing series lookup.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeSeriesNotFound)
}

// IsValidation reports whether err is a cadence or end condition rejection.
func IsValidation(err error) bool {
	return HasCode(err, ErrCodeCadenceInvalid) || HasCode(err, ErrCodeEndConditionInvalid) || HasCode(err, ErrCodeLineItemsInvalid)
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}
