// Package errors provides structured error handling for zfits.
//
// Every failure raised by the codecs, the schema registry, the merge reader
// and the table writer is an *Error carrying an ErrorType. Callers branch on
// the type with IsType rather than on message text:
//
//	rec, err := codec.Decode(msg)
//	if errors.IsType(err, errors.ErrorTypeUnknownEnumValue) {
//	    ...
//	}
//
// End of a table or of a merged stream is never reported through this
// package; readers return an explicit ok=false instead.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeUndefinedArrayType is a tag-0 array carrying a payload
	ErrorTypeUndefinedArrayType ErrorType = "undefined_array_type"
	// ErrorTypeUnsupportedArrayType is a boolean-tagged array
	ErrorTypeUnsupportedArrayType ErrorType = "unsupported_array_type"
	// ErrorTypeUnsupportedElementType is an encode of a slice with no tag mapping
	ErrorTypeUnsupportedElementType ErrorType = "unsupported_element_type"
	// ErrorTypeUnknownEnumValue is an enum number or label without a mapping
	ErrorTypeUnknownEnumValue ErrorType = "unknown_enum_value"
	// ErrorTypeUnknownField is a record field absent from the schema
	ErrorTypeUnknownField ErrorType = "unknown_field"
	// ErrorTypeUnknownMessageType is a message-type name outside the catalog
	ErrorTypeUnknownMessageType ErrorType = "unknown_message_type"
	// ErrorTypeTableTypeMismatch is an append whose type differs from the locked one
	ErrorTypeTableTypeMismatch ErrorType = "table_type_mismatch"
	// ErrorTypeFieldTypeMismatch is a record value of the wrong variant for its field
	ErrorTypeFieldTypeMismatch ErrorType = "field_type_mismatch"
	// ErrorTypeInvalidShape is an array whose length does not fit the expected layout
	ErrorTypeInvalidShape ErrorType = "invalid_shape"
	// ErrorTypeWriterClosed is an append after Close
	ErrorTypeWriterClosed ErrorType = "writer_closed"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether any error in err's chain is an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// As is errors.As from the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
