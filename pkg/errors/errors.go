// Package errors provides structured error types for curator.
//
// Errors carry a machine-readable [Code] so the CLI, the TUI and the HTTP API
// can tell the import failures apart and phrase a notice for each:
//
//   - MALFORMED_MANIFEST: the document is not a parseable JSON object
//   - NO_DEPENDENCIES: the document parses but has no dependency map
//   - UNSUPPORTED_FILE_TYPE: the document is not a JSON document at all
//   - FETCH_FAILED: one package could not be fetched from the registry
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNoDependencies, "%s has no dependencies", name)
//	if errors.Is(err, errors.ErrCodeNoDependencies) {
//	    // tell the user
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailed, origErr, "fetch %s", name)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers that branch on it.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidStatus   Code = "INVALID_STATUS"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeUnsupportedType Code = "UNSUPPORTED_FILE_TYPE"

	// Manifest import errors
	ErrCodeMalformedManifest Code = "MALFORMED_MANIFEST"
	ErrCodeNoDependencies    Code = "NO_DEPENDENCIES"

	// Working set errors
	ErrCodeInvalidTransition Code = "INVALID_TRANSITION"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Registry errors
	ErrCodeFetchFailed Code = "FETCH_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error pairs a Code with a message meant for people. Cause, when set, is
// reachable through errors.Is and errors.As.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message and cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// find returns the outermost *Error in err's chain.
func find(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost *Error in err's chain carries code.
func Is(err error, code Code) bool {
	e, ok := find(err)
	return ok && e.Code == code
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := find(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the outermost *Error without code or
// cause, falling back to err.Error() for foreign errors.
func UserMessage(err error) string {
	if e, ok := find(err); ok {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the API answers with.
// Unknown codes map to 500.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeInvalidPackage, ErrCodeInvalidStatus,
		ErrCodeInvalidConfig, ErrCodeMalformedManifest:
		return http.StatusBadRequest
	case ErrCodeNoDependencies:
		return http.StatusUnprocessableEntity
	case ErrCodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeNotFound, ErrCodePackageNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
