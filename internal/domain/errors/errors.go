// Package errors defines the error taxonomy of the session core.
//
// Failures are classified exactly once, at the boundary where they occur
// (auth gateway, persistence), and every caller above that boundary branches
// only on the classification via errors.Is. Raw transport details are never
// re-interpreted downstream.
package errors

import (
	"terminal/internal/errors"
)

// ClassifiedError is a sentinel carrying a stable business error code.
// Wrapping with pkg/errors preserves the sentinel for errors.Is checks.
type ClassifiedError struct {
	code    string
	message string
}

// NewClassifiedError creates a classification sentinel.
func NewClassifiedError(code, message string) *ClassifiedError {
	return &ClassifiedError{code: code, message: message}
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return e.message
}

// Code returns the stable business error code.
func (e *ClassifiedError) Code() string {
	return e.code
}

// WrapMessage wraps the sentinel with additional context message.
func (e *ClassifiedError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

var (
	// ErrUnauthorized means the credentials were rejected outright. It is
	// always terminal for the current session: the credential store is
	// cleared and the session drops to unauthenticated. Never retried with
	// the same refresh token.
	ErrUnauthorized = NewClassifiedError(
		"UNAUTHORIZED",
		"credentials rejected by the identity service",
	)

	// ErrTransient means the network or the server was unavailable. The
	// operation may be retried, credentials are never cleared, and the
	// failure surfaces to the user only as a non-blocking advisory.
	ErrTransient = NewClassifiedError(
		"TRANSIENT",
		"identity service temporarily unreachable",
	)

	// ErrMalformedLocalState means a persisted local value (screen, pair)
	// could not be parsed. Recovered silently by falling back to defaults;
	// never surfaced to the user and never fails startup.
	ErrMalformedLocalState = NewClassifiedError(
		"MALFORMED_LOCAL_STATE",
		"persisted local state is corrupt",
	)

	// ErrInvalidInput means a caller-supplied value failed validation.
	ErrInvalidInput = NewClassifiedError(
		"INVALID_INPUT",
		"input validation failed",
	)
)
