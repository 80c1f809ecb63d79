// internal/common/errors/errors.go
// Package errors provides the standardized error taxonomy surfaced by the
// application workflow and its HTTP API.
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
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeAlreadyClaimed    ErrorCode = "ALREADY_CLAIMED"
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenConsumed     ErrorCode = "TOKEN_CONSUMED"
	ErrCodePaymentFailed     ErrorCode = "PAYMENT_FAILED"

	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeDuplicateEmail   ErrorCode = "DUPLICATE_EMAIL"
	ErrCodeQueueEntryActive ErrorCode = "QUEUE_ENTRY_ACTIVE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured application error.
type DomainError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("DomainError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from err, or ErrCodeInternal when err is
// not a DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable bad-input error.
func NewValidationError(details string) *DomainError {
	return &DomainError{
		Code:      ErrCodeValidation,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError signals an operation invoked against a status
// outside its allowed source set. Callers must treat this as a caller bug,
// not something to retry.
func NewInvalidTransitionError(op, status string) *DomainError {
	return &DomainError{
		Code:      ErrCodeInvalidTransition,
		Message:   fmt.Sprintf("Operation %q is not allowed from status %q", op, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyClaimedError signals a lost claim race. Routine, not log-worthy.
func NewAlreadyClaimedError(applicationID string) *DomainError {
	return &DomainError{
		Code:      ErrCodeAlreadyClaimed,
		Message:   "Application is already claimed by another agent",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenExpiredError creates the error for a review link past its window.
func NewTokenExpiredError() *DomainError {
	return &DomainError{
		Code:      ErrCodeTokenExpired,
		Message:   "Review link has expired",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenConsumedError creates the error for a review link used twice.
func NewTokenConsumedError() *DomainError {
	return &DomainError{
		Code:      ErrCodeTokenConsumed,
		Message:   "Review link has already been used",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentError wraps a gateway failure. The engine never retries these;
// re-attempting checkout is the caller's call.
func NewPaymentError(err error) *DomainError {
	return &DomainError{
		Code:      ErrCodePaymentFailed,
		Message:   "Payment was not processed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates an authentication failure error.
func NewUnauthorizedError(details string) *DomainError {
	return &DomainError{
		Code:      ErrCodeUnauthorized,
		Message:   "Authentication required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError signals a capability the caller's role does not hold.
func NewForbiddenError(capability string) *DomainError {
	return &DomainError{
		Code:      ErrCodeForbidden,
		Message:   "Role is not permitted to perform this operation",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateEmailError signals a registration against an existing account.
func NewDuplicateEmailError(email string) *DomainError {
	return &DomainError{
		Code:      ErrCodeDuplicateEmail,
		Message:   "An account with this email already exists",
		Details:   fmt.Sprintf("email: %s", email),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueEntryActiveError signals a second join while an entry is live.
func NewQueueEntryActiveError(userID string) *DomainError {
	return &DomainError{
		Code:      ErrCodeQueueEntryActive,
		Message:   "User already has an active call-queue entry",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure (database, marshaling).
func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatusMapping maps error codes to the HTTP status the API surfaces.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeValidation:        400,
	ErrCodeInvalidTransition: 409,
	ErrCodeAlreadyClaimed:    409,
	ErrCodeTokenExpired:      410,
	ErrCodeTokenConsumed:     410,
	ErrCodePaymentFailed:     402,
	ErrCodeNotFound:          404,
	ErrCodeUnauthorized:      401,
	ErrCodeForbidden:         403,
	ErrCodeDuplicateEmail:    409,
	ErrCodeQueueEntryActive:  409,
	ErrCodeInternal:          500,
}

// HTTPStatus returns the status code for err, defaulting to 500.
func HTTPStatus(err error) int {
	if status, ok := HTTPStatusMapping[CodeOf(err)]; ok {
		return status
	}
	return 500
}
