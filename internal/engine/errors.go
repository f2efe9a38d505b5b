package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gqlbridge/internal/dml"
	"github.com/roach88/gqlbridge/internal/statement"
	"github.com/roach88/gqlbridge/internal/store"
)

// Error is the error type every engine and cursor operation returns.
//
// Error categories:
//   - ProgrammingError: malformed or unsupported statement structure
//   - OperationalError: remote failure after the single fallback attempt
//   - DataError: a value that cannot be decoded or used as a key
//   - IntegrityError: the store refused a write as conflicting
//   - InterfaceError: cursor misuse, e.g. fetching after Close
//   - NotSupported: a valid call the engine does not implement
//
// Index-miss and unsupported-operator rejections never surface as errors;
// they become cursor warnings.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeProgramming  ErrorCode = "PROGRAMMING_ERROR"
	ErrCodeOperational  ErrorCode = "OPERATIONAL_ERROR"
	ErrCodeData         ErrorCode = "DATA_ERROR"
	ErrCodeIntegrity    ErrorCode = "INTEGRITY_ERROR"
	ErrCodeInterface    ErrorCode = "INTERFACE_ERROR"
	ErrCodeNotSupported ErrorCode = "NOT_SUPPORTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsProgrammingError reports whether err is a malformed-statement error.
func IsProgrammingError(err error) bool { return hasCode(err, ErrCodeProgramming) }

// IsOperationalError reports whether err is a remote or transport failure.
func IsOperationalError(err error) bool { return hasCode(err, ErrCodeOperational) }

// IsDataError reports whether err is a value error.
func IsDataError(err error) bool { return hasCode(err, ErrCodeData) }

// IsIntegrityError reports whether err is a rejected conflicting write.
func IsIntegrityError(err error) bool { return hasCode(err, ErrCodeIntegrity) }

// IsInterfaceError reports whether err is a cursor misuse error.
func IsInterfaceError(err error) bool { return hasCode(err, ErrCodeInterface) }

// IsNotSupported reports whether err names an unimplemented operation.
func IsNotSupported(err error) bool { return hasCode(err, ErrCodeNotSupported) }

// conflictCodes are store status codes that reject a write as conflicting.
var conflictCodes = map[string]bool{
	"ALREADY_EXISTS": true,
	"ABORTED":        true,
}

// classify wraps err in an *Error. Errors that already carry a code pass
// through unchanged.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var syntax *statement.Error
	switch {
	case errors.As(err, &syntax):
		return newError(ErrCodeProgramming, err, format, args...)
	case errors.Is(err, dml.ErrInvalidKey):
		return newError(ErrCodeData, err, format, args...)
	}
	if f, ok := store.IsFailure(err); ok && conflictCodes[f.Code] {
		return newError(ErrCodeIntegrity, err, format, args...)
	}
	return newError(ErrCodeOperational, err, format, args...)
}

var errCursorClosed = &Error{Code: ErrCodeInterface, Message: "cursor is closed"}
