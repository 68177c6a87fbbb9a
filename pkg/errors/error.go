package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 10

// Error is a coded failure. Message is what clients see; Err keeps the cause
// for errors.Is and errors.As.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.Message()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// build is shared by every constructor; skip drops build and its caller
// from the captured stack.
func build(code ErrorCode, msg string, cause error, skip int) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Details: map[string]any{},
		Err:     cause,
		Stack:   callers(skip + 1),
	}
}

// New returns an error carrying the default message of code.
func New(code ErrorCode) *Error {
	return build(code, code.Message(), nil, 2)
}

// Newf returns an error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return build(code, fmt.Sprintf(format, args...), nil, 2)
}

// Wrap attaches code to err and keeps err's text as the message. When err
// already holds an *Error, a copy with the new code is returned so shared
// values are never mutated.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	if e, ok := asError(err); ok {
		cp := *e
		cp.Code = code
		return &cp
	}
	return build(code, err.Error(), err, 2)
}

// Wrapf attaches code and a formatted message to err.
func Wrapf(err error, code ErrorCode, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return build(code, fmt.Sprintf(format, args...), err, 2)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithDetail records a key/value rendered into the response details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// GetCode reports the code carried by err. Plain errors map to
// InternalServerError and nil maps to Success.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return InternalServerError
}

// GetError returns the *Error in err's chain, wrapping plain errors as internal.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := asError(err); ok {
		return e
	}
	return Wrap(err, InternalServerError)
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	e, ok := asError(err)
	return ok && e.Code == code
}

// Terminal reports whether err ends a run without a report: the submission
// failed to load or the problem configuration could not be applied.
func Terminal(err error) bool {
	switch GetCode(err) {
	case CompilationError, EntryPointNotFound, TestCaseInvalid:
		return true
	}
	return false
}

func callers(skip int) string {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var f runtime.Frame
		f, more = frames.Next()
		if strings.HasPrefix(f.Function, "runtime.") {
			continue
		}
		fmt.Fprintf(&b, "\n\t%s:%d %s", f.File, f.Line, f.Function)
	}
	return b.String()
}

// BadRequest is an InvalidParams error with msg.
func BadRequest(msg string) *Error {
	return New(InvalidParams).WithMessage(msg)
}

// InternalError wraps err as InternalServerError.
func InternalError(err error) *Error {
	if err == nil {
		return New(InternalServerError)
	}
	return Wrap(err, InternalServerError)
}

// ValidationError reports a rejected field; field and reason are kept as details.
func ValidationError(field, reason string) *Error {
	return Newf(ValidationFailed, "%s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("reason", reason)
}
