// Package apperr classifies failures of remote calls so that retry and
// fallback policies can dispatch on a closed set of kinds.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the class of a remote failure
type Kind int

const (
	Fatal Kind = iota
	Overloaded
	AuthFailure
	NotFound
	Transient
)

func (k Kind) String() string {
	switch k {
	case Overloaded:
		return "overloaded"
	case AuthFailure:
		return "auth_failure"
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// Error is a classified error
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are Fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromHTTPStatus maps an upstream HTTP status code to a kind
func FromHTTPStatus(code int) Kind {
	switch {
	case code == http.StatusServiceUnavailable || code == 529:
		return Overloaded
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return AuthFailure
	case code == http.StatusNotFound:
		return NotFound
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return Transient
	default:
		return Fatal
	}
}
