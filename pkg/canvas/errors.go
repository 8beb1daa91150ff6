package canvas

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a canvas command failure.
type ErrorClass string

const (
	// ErrorClassReferential indicates the command targeted a node or edge
	// that does not exist. State is left unchanged and callers may ignore it,
	// since the UI can race with concurrent deletions.
	ErrorClassReferential ErrorClass = "referential"

	// ErrorClassConflict indicates the command would break identity
	// uniqueness, e.g. adding a node whose id is taken.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassInvalid indicates malformed arguments.
	ErrorClassInvalid ErrorClass = "invalid"

	// ErrorClassInternal indicates a broken internal invariant.
	ErrorClassInternal ErrorClass = "internal"
)

// Error represents a classified canvas error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the node or edge id that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the command being applied when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	case e.Resource != "":
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewReferentialError creates a new referential error.
func NewReferentialError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassReferential,
		Message: message,
		Code:    ErrCodeNotFound,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassConflict,
		Message: message,
		Code:    ErrCodeAlreadyExists,
		Err:     err,
	}
}

// NewInvalidError creates a new invalid-argument error.
func NewInvalidError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassInvalid,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassInternal,
		Message: message,
		Code:    ErrCodeInternal,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(id string) *Error {
	e.Resource = id
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode overrides the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsReferential returns true if the error is classified as referential.
func IsReferential(err error) bool {
	return classOf(err) == ErrorClassReferential
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	return classOf(err) == ErrorClassConflict
}

// IsInvalid returns true if the error is classified as invalid input.
func IsInvalid(err error) bool {
	return classOf(err) == ErrorClassInvalid
}

// IsInternal returns true if the error is classified as internal.
func IsInternal(err error) bool {
	return classOf(err) == ErrorClassInternal
}

func classOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// Sentinel errors usable with errors.Is.
var (
	ErrNotFound      = &Error{Class: ErrorClassReferential, Code: ErrCodeNotFound}
	ErrAlreadyExists = &Error{Class: ErrorClassConflict, Code: ErrCodeAlreadyExists}
)

func nodeNotFound(op, id string) error {
	return NewReferentialError("node not found", nil).WithResource(id).WithOperation(op)
}

func edgeNotFound(op, id string) error {
	return NewReferentialError("edge not found", nil).WithResource(id).WithOperation(op)
}
