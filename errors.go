package pls

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a structured runtime error with operation context
type Error struct {
	Op     string    // Operation that failed (e.g., "ENQUEUE", "UNDEEPEN")
	Worker int       // Worker id (-1 if not applicable)
	Code   ErrorCode // High-level error category
	Msg    string    // Human-readable message
	Inner  error     // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Worker >= 0 {
		parts = append(parts, fmt.Sprintf("worker=%d", e.Worker))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("pls: %s (%s)", msg, strings.Join(parts, " "))
	}

	return fmt.Sprintf("pls: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by error code
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeContract      ErrorCode = "programmer contract violation"
	ErrCodeArgOverflow   ErrorCode = "argument tile overflow"
	ErrCodeQueueFull     ErrorCode = "task queue full"
	ErrCodeInvalidConfig ErrorCode = "invalid configuration"
	ErrCodeInvalidState  ErrorCode = "invalid runtime state"
	ErrCodeNotSupported  ErrorCode = "not supported by this back-end"
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Worker: -1, Code: code, Msg: msg}
}

// NewWorkerError creates a new worker-scoped error
func NewWorkerError(op string, worker int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Worker: worker, Code: code, Msg: msg}
}

// WrapError wraps an existing error with runtime context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if pe, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Worker: pe.Worker,
			Code:   pe.Code,
			Msg:    pe.Msg,
			Inner:  pe.Inner,
		}
	}

	return &Error{
		Op:     op,
		Worker: -1,
		Code:   ErrCodeInvalidState,
		Msg:    inner.Error(),
		Inner:  inner,
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// contractViolation panics with a structured diagnostic. Programmer
// contract violations are fatal by design; they never propagate as
// recoverable errors.
func contractViolation(op string, worker int, msg string) {
	panic(NewWorkerError(op, worker, ErrCodeContract, msg))
}
