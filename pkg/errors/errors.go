package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the standard error type used across the library.
//
// Code is a stable machine-readable string (e.g. MQ_CONSUMER_CLOSED).
// Status is the numeric value that crosses the binding boundary; callers
// outside the library only ever see the Status. Err carries the underlying
// cause, if any.
type AppError struct {
	Code    string
	Status  int32
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is / errors.As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by Code so sentinel comparison works through
// wrapping.
func (e *AppError) Is(target error) bool {
	var app *AppError
	if stderrors.As(target, &app) {
		return app.Code == e.Code
	}
	return false
}

// New creates an AppError with the given code, message and optional cause.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewStatus creates an AppError that also carries a numeric status.
func NewStatus(code string, status int32, message string, err error) *AppError {
	return &AppError{Code: code, Status: status, Message: message, Err: err}
}

// Wrap annotates err with a message, preserving its code and status when
// it already is an AppError.
func Wrap(err error, message string) *AppError {
	var app *AppError
	if stderrors.As(err, &app) {
		return &AppError{Code: app.Code, Status: app.Status, Message: message, Err: err}
	}
	return &AppError{Code: "INTERNAL", Message: message, Err: err}
}

// StatusOf extracts the numeric status from err. It returns 0 for nil and
// fallback for errors that do not carry one.
func StatusOf(err error, fallback int32) int32 {
	if err == nil {
		return 0
	}
	var app *AppError
	if stderrors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return fallback
}

// CodeOf extracts the string code from err, or "" when absent.
func CodeOf(err error) string {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Code
	}
	return ""
}

// Is re-exports the standard library matcher so callers need a single errors
// import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As re-exports the standard library matcher.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
