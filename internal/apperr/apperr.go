// Package apperr defines the error kinds surfaced by the storefront services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindInsufficientStock Kind = "InsufficientStock"
	KindEmptyCart         Kind = "EmptyCart"
	KindValidation        Kind = "ValidationError"
	KindStorage           Kind = "StorageFailure"
)

// Error is a domain error carrying a kind and a message safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	// ProductID names the offending product for InsufficientStock.
	ProductID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing product, cart, item or order.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock reports that productID cannot cover the requested quantity.
func InsufficientStock(productID, message string) *Error {
	return &Error{Kind: KindInsufficientStock, Message: message, ProductID: productID}
}

// EmptyCart reports a checkout attempt with no items.
func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Message: "Cart is empty"}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a transaction or connection failure.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Unclassified errors are storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		return e.Message
	}
	return "internal server error"
}
