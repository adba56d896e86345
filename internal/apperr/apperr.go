// Package apperr defines the error codes surfaced by the ledger, entitlement
// and reconciliation services, and how they map onto HTTP responses.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeListingUnavailable Code = "LISTING_UNAVAILABLE"
	CodeAlreadyFinalized   Code = "ALREADY_FINALIZED"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"

	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"
)

// HTTPStatus maps a code to the status returned by the API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeAccountNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case CodeListingUnavailable, CodeAlreadyFinalized, CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the operation unchanged.
func (c Code) Retryable() bool {
	return c == CodeStorageUnavailable
}

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidArgument    = New(CodeInvalidArgument, "invalid argument")
	ErrInvalidAmount      = New(CodeInvalidArgument, "amount must be a positive integer")
	ErrAccountNotFound    = New(CodeAccountNotFound, "account not found")
	ErrInsufficientFunds  = New(CodeInsufficientFunds, "insufficient funds")
	ErrListingUnavailable = New(CodeListingUnavailable, "listing is not available")
	ErrAlreadyFinalized   = New(CodeAlreadyFinalized, "record is already finalized")
	ErrStorageUnavailable = New(CodeStorageUnavailable, "storage unavailable")
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrForbidden          = New(CodeForbidden, "forbidden")
)

// Invalid returns an InvalidArgument error with a user-facing message.
func Invalid(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// Storage wraps an infrastructure failure. The unit of work has rolled back.
func Storage(cause error) *Error {
	return Wrap(CodeStorageUnavailable, "storage unavailable", cause)
}

// CodeOf extracts the code from err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Ensure passes *Error values through and wraps anything else as StorageUnavailable.
func Ensure(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Storage(err)
}
