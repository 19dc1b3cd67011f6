// Package apperr defines the error taxonomy shared by the domain packages.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindAccessDenied    Kind = "access_denied"
	KindInvalidState    Kind = "invalid_state"
	KindRateLimited     Kind = "rate_limited"
	KindValidation      Kind = "validation"
	KindCapacity        Kind = "capacity"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(kind Kind, code, message string, details any) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func Unauthenticated(message string) *Error {
	return newError(KindUnauthenticated, "UNAUTHENTICATED", message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, "NOT_FOUND", message, nil)
}

func AccessDenied(message string) *Error {
	return newError(KindAccessDenied, "ACCESS_DENIED", message, nil)
}

func InvalidState(message string) *Error {
	return newError(KindInvalidState, "INVALID_STATE", message, nil)
}

func RateLimited(message string, retryAfterSeconds int) *Error {
	return newError(KindRateLimited, "RATE_LIMITED", message, map[string]any{"retryAfterSeconds": retryAfterSeconds})
}

func Validation(message string, details any) *Error {
	return newError(KindValidation, "VALIDATION_ERROR", message, details)
}

func Capacity(message string) *Error {
	return newError(KindCapacity, "SPACE_LIMIT_REACHED", message, nil)
}

// KindOf reports the kind of err, or "" when err does not carry one.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
