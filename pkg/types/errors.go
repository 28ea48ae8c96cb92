// Package types defines the error taxonomy shared by every gometl package.
//
// All failures surfaced by the engine are *Error values carrying an
// ErrorCode, so callers can branch with errors.Is against the sentinel
// values below:
//
//	if _, err := expr.Get[float64](e); errors.Is(err, types.ErrTypeMismatch) {
//	    // convert first, then retry
//	}
package types

import "fmt"

// ErrorCode identifies a class of engine error.
type ErrorCode string

// Error codes.
const (
	// R0xxx: registry / construction-time errors
	ErrCodeUnsupportedType ErrorCode = "R0101"
	ErrCodeDuplicateType   ErrorCode = "R0102"
	ErrCodeInvalidTypeName ErrorCode = "R0103"

	// T1xxx: expression errors
	ErrCodeTypeMismatch      ErrorCode = "T1001"
	ErrCodeInvalidExpression ErrorCode = "T1002"
	ErrCodeDivisionByZero    ErrorCode = "T1003"

	// C2xxx: conversion table errors
	ErrCodeConversionNotFound ErrorCode = "C2001"
	ErrCodeArgumentCount      ErrorCode = "C2002"
	ErrCodeAmbiguousCall      ErrorCode = "C2003"
	ErrCodeTableFrozen        ErrorCode = "C2004"

	// M3xxx: mangler faults (programming errors)
	ErrCodeMangleCollision ErrorCode = "M3001"

	// K4xxx: configuration errors
	ErrCodeInvalidConfig ErrorCode = "K4001"

	// W5xxx: WebAssembly-backed functions
	ErrCodeWasmModule ErrorCode = "W5001"
	ErrCodeWasmCall   ErrorCode = "W5002"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrUnsupportedType    = &Error{Code: ErrCodeUnsupportedType}
	ErrDuplicateType      = &Error{Code: ErrCodeDuplicateType}
	ErrInvalidTypeName    = &Error{Code: ErrCodeInvalidTypeName}
	ErrTypeMismatch       = &Error{Code: ErrCodeTypeMismatch}
	ErrInvalidExpression  = &Error{Code: ErrCodeInvalidExpression}
	ErrDivisionByZero     = &Error{Code: ErrCodeDivisionByZero}
	ErrConversionNotFound = &Error{Code: ErrCodeConversionNotFound}
	ErrArgumentCount      = &Error{Code: ErrCodeArgumentCount}
	ErrAmbiguousCall      = &Error{Code: ErrCodeAmbiguousCall}
	ErrTableFrozen        = &Error{Code: ErrCodeTableFrozen}
	ErrMangleCollision    = &Error{Code: ErrCodeMangleCollision}
	ErrInvalidConfig      = &Error{Code: ErrCodeInvalidConfig}
	ErrWasmModule         = &Error{Code: ErrCodeWasmModule}
	ErrWasmCall           = &Error{Code: ErrCodeWasmCall}
)

// Error represents a structured engine error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError creates a new engine error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new engine error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}
