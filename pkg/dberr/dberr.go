// Package dberr defines SoliDB's stable error taxonomy (spec §7).
//
// Every fallible core API returns an explicit *Error instead of panicking
// or relying on exception-style control flow. HTTP and driver adapters map
// Code to their own status representation (HTTP status class, DriverError
// kind) at the edge.
package dberr

import (
	"errors"
	"fmt"
)

// Code is a stable, wire-independent error classification.
type Code string

const (
	CodeParseError           Code = "ParseError"
	CodeExecutionError       Code = "ExecutionError"
	CodeDocumentNotFound     Code = "DocumentNotFound"
	CodeCollectionNotFound   Code = "CollectionNotFound"
	CodeDatabaseNotFound     Code = "DatabaseNotFound"
	CodeInvalidDocument      Code = "InvalidDocument"
	CodeTransactionNotFound  Code = "TransactionNotFound"
	CodeTransactionConflict  Code = "TransactionConflict"
	CodeOperationNotSupported Code = "OperationNotSupported"
	CodeCollectionExists     Code = "CollectionAlreadyExists"
	CodeInternalError        Code = "InternalError"
	CodeBadRequest           Code = "BadRequest"
)

// Error is the concrete error type returned by SoliDB's core packages.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that wraps an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the Code from err, defaulting to InternalError for
// errors that did not originate in this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// HTTPStatus maps a Code to the HTTP status class from spec §7.
func HTTPStatus(code Code) int {
	switch code {
	case CodeParseError, CodeInvalidDocument, CodeOperationNotSupported, CodeBadRequest:
		return 400
	case CodeExecutionError:
		return 422
	case CodeDocumentNotFound, CodeCollectionNotFound, CodeDatabaseNotFound, CodeTransactionNotFound:
		return 404
	case CodeTransactionConflict, CodeCollectionExists:
		return 409
	default:
		return 500
	}
}
