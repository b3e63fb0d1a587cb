// Package errors provides structured error types for ovalmerge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP service
//   - Machine-readable error codes for programmatic handling
//   - Mapping of fatal merge conditions to process exit codes
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Fatal merge conditions each have their own code:
//   - PARSE_ERROR: an input is not well-formed XML
//   - DANGLING_REFERENCE: a reference names an id absent from its own document
//   - OUTPUT_DUPLICATE_ID: the assembled output repeats an id
//   - STRUCTURAL: a definition lacks its metadata/title
//
// Duplicate ids inside one input are not errors; they are reported as
// warnings by the regenerator.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDanglingReference, "%s: no element with id %q", doc, id)
//	if errors.Is(err, errors.ErrCodeDanglingReference) {
//	    // Handle missing reference
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeParse, origErr, "parse %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Fatal merge conditions
	ErrCodeParse             Code = "PARSE_ERROR"
	ErrCodeDanglingReference Code = "DANGLING_REFERENCE"
	ErrCodeOutputDuplicateID Code = "OUTPUT_DUPLICATE_ID"
	ErrCodeStructural        Code = "STRUCTURAL"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeFetch        Code = "FETCH_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As is [errors.As] from the standard library, re-exported so callers
// importing this package need no second errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatalMerge reports whether err is one of the conditions that abort a
// merge because the inputs or the computation cannot be trusted.
func IsFatalMerge(err error) bool {
	switch GetCode(err) {
	case ErrCodeParse, ErrCodeDanglingReference, ErrCodeOutputDuplicateID, ErrCodeStructural:
		return true
	}
	return false
}

// ExitCode maps an error to the process exit status used by the CLI.
// Success is 0; every fatal condition gets its own non-zero status so
// scripts can tell them apart, and anything else exits with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case ErrCodeParse:
		return 2
	case ErrCodeDanglingReference:
		return 3
	case ErrCodeOutputDuplicateID:
		return 4
	case ErrCodeStructural:
		return 5
	}
	return 1
}
