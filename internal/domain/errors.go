package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FlowError represents a failure of an Open API test flow
type FlowError struct {
	Code    string
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *FlowError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeUsage                 = "USAGE_ERROR"
	ErrCodeTransportFailure      = "TRANSPORT_FAILURE"
	ErrCodeCorrelationTimeout    = "CORRELATION_TIMEOUT"
	ErrCodeSessionRegeneration   = "SESSION_REGENERATION_FAILED"
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodePersistenceReadMiss   = "PERSISTENCE_READ_MISS"
	ErrCodeMissingTestData       = "MISSING_TEST_DATA"
	ErrCodeContractViolation     = "CONTRACT_VIOLATION"
	ErrCodeInvalidFixture        = "INVALID_FIXTURE"
	ErrCodeUnresolvedPlaceholder = "UNRESOLVED_PLACEHOLDER"
)

func NewSideEffectNotFoundError(flowType, sideEffect, section string) *FlowError {
	return &FlowError{
		Code:    ErrCodeUsage,
		Message: fmt.Sprintf("side effect %q is not defined for %q %s in any fixture layer", sideEffect, flowType, section),
	}
}

func NewFlowTypeNotFoundError(flowType string) *FlowError {
	return &FlowError{
		Code:    ErrCodeUsage,
		Message: fmt.Sprintf("flow type %q is not defined in the common fixture", flowType),
	}
}

func NewMissingTestDataError(key string) *FlowError {
	return &FlowError{
		Code:    ErrCodeMissingTestData,
		Message: fmt.Sprintf("test data %q is undefined", key),
	}
}

func NewUnresolvedPlaceholderError(token string) *FlowError {
	return &FlowError{
		Code:    ErrCodeUnresolvedPlaceholder,
		Message: fmt.Sprintf("placeholder {{ %s }} has no preset value", token),
	}
}

func NewInvalidFixtureError(name string, err error) *FlowError {
	return &FlowError{
		Code:    ErrCodeInvalidFixture,
		Message: fmt.Sprintf("fixture %s is invalid", name),
		Err:     err,
	}
}

func NewTransportError(method, url string, err error) *FlowError {
	return &FlowError{
		Code:    ErrCodeTransportFailure,
		Message: fmt.Sprintf("%s %s failed without a response", method, url),
		Err:     err,
	}
}

func NewSessionRegenerationError(application, reason string) *FlowError {
	return &FlowError{
		Code:    ErrCodeSessionRegeneration,
		Message: fmt.Sprintf("session key regeneration for %q failed: %s", application, reason),
	}
}

func NewPersistenceReadMissError(target, section, key string) *FlowError {
	return &FlowError{
		Code:    ErrCodePersistenceReadMiss,
		Message: fmt.Sprintf("%s has no %q in %q", target, key, section),
	}
}

// CorrelationTimeoutError is returned when the listener never reports the
// expected correlation id within the poll budget.
type CorrelationTimeoutError struct {
	CorrelationID string
	Attempts      int
	LastObserved  *ResponseSpec
}

func (e *CorrelationTimeoutError) Error() string {
	last := "no response"
	if e.LastObserved != nil {
		last = fmt.Sprintf("status %d, data %s", e.LastObserved.Status, e.LastObserved.DataJSON())
	}
	return fmt.Sprintf("correlation id %s not reported after %d attempts (last observed: %s)", e.CorrelationID, e.Attempts, last)
}

// ValidationError carries every mismatch found between an actual and an
// expected response, together with both payloads.
type ValidationError struct {
	Mismatches []string
	Expected   ResponseSpec
	Actual     ResponseSpec
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("response validation failed: %s\nexpected: status %d, data %s\nactual: status %d, data %s",
		strings.Join(e.Mismatches, "; "),
		e.Expected.Status, e.Expected.DataJSON(),
		e.Actual.Status, e.Actual.DataJSON(),
	)
}

func IsFlowError(err error) (*FlowError, bool) {
	var flowErr *FlowError
	ok := errors.As(err, &flowErr)
	return flowErr, ok
}

// IsErrorCode checks if an error is a FlowError with a specific code
func IsErrorCode(err error, code string) bool {
	if flowErr, ok := IsFlowError(err); ok {
		return flowErr.Code == code
	}
	switch code {
	case ErrCodeCorrelationTimeout:
		var timeoutErr *CorrelationTimeoutError
		return errors.As(err, &timeoutErr)
	case ErrCodeValidationFailed:
		var validationErr *ValidationError
		return errors.As(err, &validationErr)
	}
	return false
}
