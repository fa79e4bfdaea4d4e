// Package apperr is the error taxonomy shared by catalog, ledger and orders.
// Every failure that leaves the core is one of these kinds; anything else is
// reported as KindInternal.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindConflict          Kind = "CONFLICT"
	KindInternal          Kind = "INTERNAL"
)

// Shortage describes a stock check that failed.
type Shortage struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

type Error struct {
	Kind     Kind
	Message  string
	Shortage *Shortage
	// IDs lists the offending identifiers, e.g. unknown product ids.
	IDs []string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotFoundIDs is a NotFound that carries the missing identifiers.
func NotFoundIDs(what string, ids []string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %v", what, ids), IDs: ids}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(s Shortage) *Error {
	label := s.ProductID
	if s.ProductName != "" {
		label = fmt.Sprintf("%q (%s)", s.ProductName, s.ProductID)
	}
	return &Error{
		Kind:     KindInsufficientStock,
		Message:  fmt.Sprintf("not enough stock for product %s: available %d, requested %d", label, s.Available, s.Requested),
		Shortage: &s,
	}
}

// Internal wraps a storage or infrastructure failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// As returns the taxonomy error inside err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
