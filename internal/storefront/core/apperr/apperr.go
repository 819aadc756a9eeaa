// Package apperr defines the closed set of failure kinds the storefront
// reports to its callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unauthorized Kind = "UNAUTHORIZED"
	Forbidden    Kind = "FORBIDDEN"
	NotFound     Kind = "NOT_FOUND"
	Validation   Kind = "VALIDATION_ERROR"
	BadRequest   Kind = "BAD_REQUEST"
	Conflict     Kind = "CONFLICT"
	StockLimit   Kind = "STOCK_LIMIT"
	CartEmpty    Kind = "CART_EMPTY"
	OutOfStock   Kind = "OUT_OF_STOCK"
	Internal     Kind = "INTERNAL_ERROR"
)

// Error is a failure with a client-facing kind and message. Err, when set, is
// the underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap marks err as an internal failure while keeping it inspectable with errors.Is/As.
func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message for err. Internal failures never
// leak their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Internal Server Error"
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
