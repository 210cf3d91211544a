// Package apperr classifies the errors the engine surfaces to its host.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// InvalidInput marks a malformed request. Nothing was written.
	InvalidInput Kind = "invalid_input"
	// StoreFailure marks a transaction conflict or I/O error. The failed
	// unit was rolled back and may be retried by the caller.
	StoreFailure Kind = "store_failure"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func Invalid(op string, format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

func Store(op string, err error) *Error {
	return &Error{Kind: StoreFailure, Op: op, Err: err}
}

func IsInvalid(err error) bool { return is(err, InvalidInput) }

func IsStore(err error) bool { return is(err, StoreFailure) }

func is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
