package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// PlatformError is the structured error returned across package boundaries.
type PlatformError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface.
// The format is "CODE: message (k=v, ...): cause".
func (e *PlatformError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// Is matches another *PlatformError by code, so that
// errors.Is(err, &PlatformError{Code: CodeConflict}) works as a code check.
func (e *PlatformError) Is(target error) bool {
	t, ok := target.(*PlatformError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Retryable reports whether the error describes a transient failure.
func (e *PlatformError) Retryable() bool {
	return e.Code.Retryable()
}

// New creates a PlatformError without a cause.
func New(code ErrorCode, message string) *PlatformError {
	return &PlatformError{Code: code, Message: message}
}

// Newf creates a PlatformError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *PlatformError {
	return &PlatformError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps err with a code and a formatted message. It returns nil when err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WrapWithContext wraps err with a code, a message and structured context.
// The context map is copied.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) error {
	if err == nil {
		return nil
	}
	pe := &PlatformError{Code: code, Message: message, Cause: err}
	if len(ctx) > 0 {
		pe.Context = maps.Clone(ctx)
	}
	return pe
}

// CodeOf returns the code of the outermost PlatformError in the chain,
// or CodeUnknown when there is none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *PlatformError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// HasCode reports whether any PlatformError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PlatformError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	var pe *PlatformError
	if stderrors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// Is and As re-export the standard library helpers so callers need a single import.
var (
	Is = stderrors.Is
	As = stderrors.As
)
