package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engines can report.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConfiguration     ErrorKind = "configuration"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation error"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrConfiguration     = &Error{Kind: KindConfiguration, Message: "configuration error"}
)

// Error is the failure result of a fallible engine operation.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on kind so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewValidationError reports malformed input.
func NewValidationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientStockError reports an outbound movement larger than the stock on hand.
func NewInsufficientStockError(op, articleID string, available, requested int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Op:      op,
		Message: fmt.Sprintf("article %s has %d units, %d requested", articleID, available, requested),
	}
}

// NewConfigurationError reports a missing or invalid setting needed by a computation.
func NewConfigurationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
