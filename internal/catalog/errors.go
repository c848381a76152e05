package catalog

import (
	"errors"
	"fmt"
)

// Code classifies catalog failures.
type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeDuplicateKey Code = "DUPLICATE_KEY"
	CodeCodeConflict Code = "CODE_CONFLICT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeStorage      Code = "STORAGE"
	CodeUnsupported  Code = "UNSUPPORTED"
)

// Error is a catalog error carrying a code and a message fit for admins.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors. Compare with errors.Is.
var (
	ErrValidation   = &Error{Code: CodeValidation, Message: "invalid record"}
	ErrDuplicateKey = &Error{Code: CodeDuplicateKey, Message: "record already exists"}
	ErrCodeConflict = &Error{Code: CodeCodeConflict, Message: "code is used by another item"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrStorage      = &Error{Code: CodeStorage, Message: "storage failure"}
	ErrUnsupported  = &Error{Code: CodeUnsupported, Message: "operation not supported for this shape"}
)

// Errorf builds an error with the given code and a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a backend failure. Nil in, nil out. Errors that already carry
// a catalog code pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Code: CodeStorage, Message: op, cause: err}
}

// CodeOf returns the catalog code of err, or "" if it has none.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
