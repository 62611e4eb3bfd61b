// Package errors defines the application error taxonomy and the helpers that report, retry and
// guard failing calls.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes.
const (
	CodeUserInput      = "E100"
	CodeMissingContext = "E150"
	CodeDatabase       = "E200"
	CodeCollaborator   = "E300"
	CodeState          = "E400"
	CodeNotFound       = "E404"
	CodeRateLimit      = "E500"
)

// AppError is an error with a code, a severity and the template key shown to the customer.
type AppError struct {
	Code      string
	Message   string
	UserKey   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// WithUserKey returns a copy of e that shows key to the customer.
func (e *AppError) WithUserKey(key string) *AppError {
	cp := *e
	cp.UserKey = key
	return &cp
}

// NewUserInputError reports input that the current step cannot accept.
func NewUserInputError(userKey, msg string, cause error) *AppError {
	return &AppError{
		Code:     CodeUserInput,
		Message:  msg,
		UserKey:  userKey,
		Severity: SeverityLow,
		cause:    cause,
	}
}

// NewMissingContextError reports a step whose wizard data is gone.
func NewMissingContextError(msg string, cause error) *AppError {
	return &AppError{
		Code:     CodeMissingContext,
		Message:  msg,
		UserKey:  "error_session_reset",
		Severity: SeverityMedium,
		cause:    cause,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      CodeDatabase,
		Message:   fmt.Sprintf("database error: %s", underlyingMsg),
		UserKey:   "error_temporary",
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

// NewCollaboratorError reports a failing external dependency such as the chat transport.
func NewCollaboratorError(name string, cause error) *AppError {
	return &AppError{
		Code:      CodeCollaborator,
		Message:   fmt.Sprintf("collaborator error: %s", name),
		UserKey:   "error_temporary",
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:     CodeState,
		Message:  msg,
		UserKey:  "error_invalid_state",
		Severity: SeverityMedium,
	}
}

// NewNotFoundError reports an entity that vanished between steps.
func NewNotFoundError(entity string, id int64) *AppError {
	return &AppError{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s %d not found", entity, id),
		UserKey:  "error_not_found",
		Severity: SeverityLow,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:     CodeRateLimit,
		Message:  fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserKey:  "error_rate_limited",
		Severity: SeverityLow,
	}
}

// HasCode reports whether err wraps an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Code == code
}
