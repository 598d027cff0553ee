// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the recording and transcription surfaces
// can return. Callers branch on the kind, never on error strings.
type ErrorKind string

const (
	// SessionConflict: a capture session is already active.
	SessionConflict ErrorKind = "SESSION_CONFLICT"
	// StateViolation: the capture device was in an unexpected state for the
	// requested operation; carries actual and expected states.
	StateViolation ErrorKind = "STATE_VIOLATION"
	// IOFailure: file or storage layer failure.
	IOFailure ErrorKind = "IO_FAILURE"
	// NoConnectivity: network unreachable, transcription cannot be attempted.
	NoConnectivity ErrorKind = "NO_CONNECTIVITY"
	// Timeout: the transcription call exceeded its fixed deadline.
	Timeout ErrorKind = "TIMEOUT"
	// ServiceError: the transcription provider rejected the request.
	ServiceError ErrorKind = "SERVICE_ERROR"
	// NotFound: the referenced recording does not exist.
	NotFound ErrorKind = "NOT_FOUND"
	// Unclassified: fallback for anything that fits no other kind.
	Unclassified ErrorKind = "UNCLASSIFIED"
)

// Error is the domain error carried across component boundaries. It wraps the
// underlying cause so errors.Is/As keep working through it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	// Actual/Expected are populated for StateViolation only.
	Actual   string
	Expected []string

	// ProviderStatus is populated for ServiceError only.
	ProviderStatus int
}

func (e *Error) Error() string {
	switch {
	case e.Kind == StateViolation && e.Actual != "":
		return fmt.Sprintf("%s: %s (actual=%s expected=%v)", e.Kind, e.Message, e.Actual, e.Expected)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a domain error of the given kind wrapping cause (may be nil).
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// NewStateViolation reports a device state mismatch with diagnostics.
func NewStateViolation(message, actual string, expected ...string) *Error {
	return &Error{Kind: StateViolation, Message: message, Actual: actual, Expected: expected}
}

// NewServiceError reports a provider rejection with its status code.
func NewServiceError(message string, status int, cause error) *Error {
	return &Error{Kind: ServiceError, Message: message, Err: cause, ProviderStatus: status}
}

// KindOf extracts the ErrorKind from err, walking the wrap chain.
// Returns Unclassified for nil or foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return Unclassified
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
