// internal/common/errors/handler.go
package errors

import (
	"time"
)

// Handler normalizes and logs series processing failures with
// standardized error handling.
type Handler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// HandleSeriesError normalizes err, logs it with series context, and
// reports whether the failure should be retried on a later scan.
func (h *Handler) HandleSeriesError(seriesID string, sequence int, err error) bool {
	stdErr := h.normalizeError(err)

	h.logger.Error("Series processing failed", map[string]interface{}{
		"seriesId":  seriesID,
		"sequence":  sequence,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	})

	return stdErr.Retryable
}

// normalizeError ensures we always have a StandardError
func (h *Handler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
