package domain

import (
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAggregation    = "AGGREGATION_ERROR"
	ErrCodePrediction     = "PREDICTION_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents malformed or incomplete input. It is surfaced
// to the caller and never retried.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// PredictionError reports a failed or out-of-range model call.
type PredictionError struct {
	Model     string
	Condition Condition
	Err       error
}

func (e *PredictionError) Error() string {
	if e.Condition != "" {
		return fmt.Sprintf("prediction failed for %s (model %s): %v", e.Condition, e.Model, e.Err)
	}
	return fmt.Sprintf("prediction failed (model %s): %v", e.Model, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// AggregationError is returned by an assessment when any condition score
// could not be obtained. No partial assessment is produced.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("risk aggregation failed: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// StorageError is a persistence failure on the fire-and-forget path.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CacheError is a cache failure on the fire-and-forget path.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s failed: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// SchedulingFault is raised (as a panic value) when a risk level outside the
// four bands reaches the scheduling policy. It indicates a programming error.
type SchedulingFault struct {
	Level RiskLevel
}

func (e *SchedulingFault) Error() string {
	return fmt.Sprintf("no assessment schedule for risk level %q", e.Level)
}
