package booking

import (
	"errors"
	"fmt"
)

// Code is the machine-readable part of a booking error. The mobile client
// branches on it.
type Code string

const (
	CodeInvalidQuantity   Code = "invalid_quantity"
	CodeInvalidDate       Code = "invalid_date"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeDeviceNotFound    Code = "device_not_found"
	CodeRequestNotFound   Code = "request_not_found"
	CodeIllegalTransition Code = "illegal_transition"
	CodeBusy              Code = "busy"
	CodeStorageFault      Code = "storage_fault"
)

// Error is returned by every booking operation that fails for a reason the
// caller can act on. Available is set for stock rejections.
type Error struct {
	Code      Code
	Message   string
	Available *int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so callers can use errors.Is(err, booking.ErrBusy).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidQuantity   = &Error{Code: CodeInvalidQuantity, Message: "quantity must be greater than 0"}
	ErrInvalidDate       = &Error{Code: CodeInvalidDate, Message: "invalid date format, use YYYY-MM-DD"}
	ErrInsufficientStock = &Error{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrDeviceNotFound    = &Error{Code: CodeDeviceNotFound, Message: "device not found"}
	ErrRequestNotFound   = &Error{Code: CodeRequestNotFound, Message: "request not found"}
	ErrIllegalTransition = &Error{Code: CodeIllegalTransition, Message: "action not allowed in the current state"}
	ErrBusy              = &Error{Code: CodeBusy, Message: "device is busy, try again"}
	ErrStorageFault      = &Error{Code: CodeStorageFault, Message: "storage failure"}
)

func newError(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

func insufficient(msg string, available int) *Error {
	if available < 0 {
		available = 0
	}
	return &Error{Code: CodeInsufficientStock, Message: msg, Available: &available}
}

// Busyf wraps a lock acquisition failure.
func Busyf(err error) *Error {
	return &Error{Code: CodeBusy, Message: ErrBusy.Message, Err: err}
}

// StorageFault wraps an underlying persistence error.
func StorageFault(op string, err error) *Error {
	return &Error{Code: CodeStorageFault, Message: op, Err: err}
}

// Retryable reports whether the caller may retry the same operation unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrStorageFault)
}

// AsError returns err as a *Error, classifying anything unknown as a storage
// fault.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return StorageFault("unexpected failure", err)
}
