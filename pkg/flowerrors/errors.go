// Package flowerrors provides the structured error taxonomy shared by every
// parquetflow component. Each error carries a Code that plays the role of the
// discriminated status returned across the public API, plus optional context
// details and the call stack captured at creation.
//
// # Codes
//
//   - CodeInvalidArgument: malformed schema, length mismatches, invalid config
//   - CodeNotOpen: operation on a handle that is not (or no longer) open
//   - CodeInvalidState: operation outside its valid lifecycle state
//   - CodeFull: backpressure, the record was dropped
//   - CodeSchema: schema unset, redefinition, or data violating the schema
//   - CodeIO: filesystem or stream failure
//   - CodeInternal, CodeOutOfMemory: invariant violations and allocation failures
//
// A nil error is the OK status.
//
// # Basic Usage
//
//	if len(cols) == 0 {
//	    return flowerrors.New(flowerrors.CodeInvalidArgument, "schema has no columns")
//	}
//
//	if _, err := f.Write(buf); err != nil {
//	    return flowerrors.Wrap(err, flowerrors.CodeIO, "write column chunk").
//	        WithDetail("column", name)
//	}
//
//	if flowerrors.IsCode(err, flowerrors.CodeFull) {
//	    dropped++
//	}
package flowerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Code represents the category of an error and doubles as the API status.
type Code string

const (
	// CodeInvalidArgument represents malformed input
	CodeInvalidArgument Code = "invalid_argument"
	// CodeNotOpen represents an operation on a handle that is not open
	CodeNotOpen Code = "not_open"
	// CodeInvalidState represents an operation outside its lifecycle state
	CodeInvalidState Code = "invalid_state"
	// CodeFull represents ring buffer backpressure
	CodeFull Code = "full"
	// CodeSchema represents schema errors
	CodeSchema Code = "schema"
	// CodeIO represents file and stream failures
	CodeIO Code = "io"
	// CodeInternal represents invariant violations
	CodeInternal Code = "internal"
	// CodeOutOfMemory represents allocation failures
	CodeOutOfMemory Code = "out_of_memory"
)

// ErrFull is returned by non-blocking pushes when the ring buffer is full.
// It is preallocated so the producer path never allocates.
var ErrFull = &Error{Code: CodeFull, Message: "ring buffer full, record dropped"}

// Error represents a structured error with context.
//
// Fields:
//   - Code: the status category
//   - Message: human-readable description
//   - Cause: the underlying error, if any
//   - Details: key-value context
//   - Stack: call stack at the point of creation
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, flowerrors.ErrFull) works for any full error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// WithDetail adds a key-value detail to the error. It can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given code and message, capturing the
// call stack at the point of creation.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a code and message, preserving the
// original error as the cause. If err is already an *Error its stack is
// kept. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:    code,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// CodeOf returns the code of the outermost *Error in err's chain. A nil
// error has no code and returns the empty string; errors that are not
// *Error are reported as CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return CodeInternal
	}
	return e.Code
}

// IsCode checks if the error carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRecoverable reports whether the caller may retry the operation. Only
// backpressure is recoverable; everything else is a caller mistake or fatal.
func IsRecoverable(err error) bool {
	return IsCode(err, CodeFull)
}

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
