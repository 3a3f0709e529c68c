package msapp

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a pack failure.
type ErrorClass string

const (
	// ErrorClassMalformed is structural input that cannot be processed.
	// It aborts the run.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassMissing is an absent optional input. It is reported for
	// diagnostics and never returned from Run.
	ErrorClassMissing ErrorClass = "missing"

	// ErrorClassInternal is a failure of pakit itself, such as an encoder
	// error on data it produced.
	ErrorClassInternal ErrorClass = "internal"
)

// PackError is a classified pipeline error carrying the entry and stage
// it came from.
type PackError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Entry is the package entry path that caused the error, if any.
	Entry string `json:"entry,omitempty"`

	// Stage is the pipeline stage that failed.
	Stage string `json:"stage,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PackError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Entry != "" && e.Stage != "":
		msg += fmt.Sprintf(" (entry=%s, stage=%s)", e.Entry, e.Stage)
	case e.Entry != "":
		msg += fmt.Sprintf(" (entry=%s)", e.Entry)
	case e.Stage != "":
		msg += fmt.Sprintf(" (stage=%s)", e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *PackError) Unwrap() error {
	return e.Err
}

// Is matches another PackError with the same class and code.
func (e *PackError) Is(target error) bool {
	t, ok := target.(*PackError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewMalformedError creates a new malformed-input error.
func NewMalformedError(message string, err error) *PackError {
	return &PackError{Class: ErrorClassMalformed, Message: message, Err: err}
}

// NewMissingError creates a new missing-input error.
func NewMissingError(message string) *PackError {
	return &PackError{Class: ErrorClassMissing, Message: message}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *PackError {
	return &PackError{Class: ErrorClassInternal, Message: message, Err: err}
}

// WithEntry adds the entry path to an error.
func (e *PackError) WithEntry(path string) *PackError {
	e.Entry = path
	return e
}

// WithStage adds the pipeline stage to an error.
func (e *PackError) WithStage(stage string) *PackError {
	e.Stage = stage
	return e
}

// WithCode adds an error code to an error.
func (e *PackError) WithCode(code string) *PackError {
	e.Code = code
	return e
}

// IsMalformed returns true if the error is classified as malformed input.
func IsMalformed(err error) bool {
	var e *PackError
	if errors.As(err, &e) {
		return e.Class == ErrorClassMalformed
	}
	return false
}

// IsInternal returns true if the error is classified as internal.
func IsInternal(err error) bool {
	var e *PackError
	if errors.As(err, &e) {
		return e.Class == ErrorClassInternal
	}
	return false
}

// ClassOf returns the class of a PackError in err's chain, or internal.
func ClassOf(err error) ErrorClass {
	var e *PackError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassInternal
}

// Error codes.
const (
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeInvalidControl  = "INVALID_CONTROL"
	ErrCodeInvalidDocument = "INVALID_DOCUMENT"
	ErrCodeInvalidYAML     = "INVALID_YAML"
	ErrCodeEncode          = "ENCODE_FAILED"
)
