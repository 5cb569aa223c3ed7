// Package apperr defines the error taxonomy shared by services and driving adapters.
// Services return *Error values for expected business failures; adapters map the
// kind to a transport status with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels. An *Error unwraps to exactly one of these.
var (
	ErrValidation   = errors.New("validation_failed")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream_failed")
)

// CodeInternal is reported for any error that does not carry a kind.
const CodeInternal = "internal_error"

// Error is a classified application error.
type Error struct {
	Kind    error
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind sentinel to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// WithDetail returns a copy of e carrying an extra field-keyed detail.
func (e *Error) WithDetail(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or out-of-policy input.
func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

// NotFound reports a referenced entity that does not exist.
func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

// Conflict reports a state or precondition violation.
func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, format, args...)
}

// Unauthorized reports missing or refused credentials for a remote operation.
func Unauthorized(format string, args ...any) *Error {
	return newError(ErrUnauthorized, format, args...)
}

// Upstream reports a failure of a remote collaborator (git remote, execution client).
func Upstream(format string, args ...any) *Error {
	return newError(ErrUpstream, format, args...)
}

// Code returns the stable error code for err.
func Code(err error) string {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return CodeInternal
}

// DetailsOf returns the details carried by err, if any.
func DetailsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
