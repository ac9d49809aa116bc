// Package apperr defines the typed error kinds returned by the organization,
// membership, invitation and token services. Handlers translate a Kind into an
// HTTP status; everything else in the call chain just wraps and returns.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure.
type Kind int

const (
	// Internal is the zero value so an unclassified error never leaks as a 4xx.
	Internal Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	InvalidInput
	Conflict
	CapacityExceeded
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case CapacityExceeded:
		return "capacity_exceeded"
	case InvariantViolation:
		return "invariant_violation"
	default:
		return "internal"
	}
}

// Error is a service error carrying a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Shorthands used throughout the services package.
var (
	ErrUnauthorized = New(Unauthenticated, "Unauthorized")
	ErrForbidden    = New(Forbidden, "Forbidden")
)

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-facing message for err. Internal errors never
// expose their cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a Kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden, CapacityExceeded:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidInput, InvariantViolation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
