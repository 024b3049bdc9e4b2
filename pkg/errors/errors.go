package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnsupported marks an instruction the tier-1 emitter has no case for.
	// The caller keeps running the method in the interpreter.
	ErrUnsupported = stderrors.New("unsupported instruction")

	// ErrStackShape marks bytecode whose operand stack under- or overflows the
	// declared stack depth.
	ErrStackShape = stderrors.New("operand stack shape")
)

// CompileError is a compilation failure tied to a bytecode offset.
type CompileError struct {
	Message string
	Offset  int // stream offset of the failing instruction, -1 if none
	Cause   error
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Offset >= 0 {
		msg = fmt.Sprintf("ip %d: %s", e.Offset, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// IsCompileError checks if an error is a compile error
func IsCompileError(err error) bool {
	var ce *CompileError
	return stderrors.As(err, &ce)
}

// Reason returns the message and offset of the first CompileError in err's
// chain, or err's text and -1.
func Reason(err error) (string, int) {
	var ce *CompileError
	if stderrors.As(err, &ce) {
		return ce.Message, ce.Offset
	}
	if err == nil {
		return "", -1
	}
	return err.Error(), -1
}

// WrapCompileError wraps an existing error as a compile error
func WrapCompileError(err error, offset int, message string) *CompileError {
	return &CompileError{
		Message: message,
		Offset:  offset,
		Cause:   err,
	}
}

// CompileErrorf creates a new compile error with formatted message
func CompileErrorf(offset int, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
		Cause:   nil,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
