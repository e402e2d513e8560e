package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode  Phase = "encode"  // managed value to payload
	PhaseDecode  Phase = "decode"  // payload to envelope
	PhaseCall    Phase = "call"    // boundary invocation
	PhaseFuture  Phase = "future"  // async completion bridging
	PhaseStream  Phase = "stream"  // iterator bridging
	PhaseRuntime Phase = "runtime" // runtime assembly and setup
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedPayload Kind = "malformed_payload"
	KindMisuse           Kind = "misuse"
	KindNotFound         Kind = "not_found"
	KindNotInitialized   Kind = "not_initialized"
	KindClosed           Kind = "closed"
	KindUnsupported      Kind = "unsupported"
	KindInvalidInput     Kind = "invalid_input"
	KindCallFailed       Kind = "call_failed"
)

// ErrCancelled marks the non-error terminal state of a cancelled future or
// stream. Match with errors.Is; it is deliberately not an *Error because
// cancellation is an outcome, not a fault.
var ErrCancelled = errors.New("cancelled")

// Error is the structured error type used throughout the runtime. It covers
// every failure this side produces itself; errors the native side reports
// explicitly are Domain values instead.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Handle int64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		fmt.Fprintf(&b, " handle=%d", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithHandle attaches handle context and returns the error.
func (e *Error) WithHandle(handle int64) *Error {
	e.Handle = handle
	return e
}

// Domain is an error the native side reported explicitly inside a result
// envelope. Message is stable and user-facing; Debug is diagnostic and may
// reveal native implementation detail. Callers needing only one of the two
// never have to parse the other.
type Domain struct {
	Message string
	Debug   string
}

func (e *Domain) Error() string {
	return e.Message
}

// Is reports whether target is any Domain error.
func (e *Domain) Is(target error) bool {
	_, ok := target.(*Domain)
	return ok
}

// Convenience constructors for common error patterns

// Malformed creates a marshaling failure: the payload could not be decoded
// against the expected schema. Distinct from a Domain error by construction.
func Malformed(phase Phase, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedPayload,
		Detail: detail,
		Cause:  cause,
	}
}

// Misuse creates a programming-error value. These are panicked, never
// returned: they indicate a bug in the caller, not a domain condition.
func Misuse(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisuse,
		Detail: detail,
	}
}

// CallFailed wraps a boundary invocation failure.
func CallFailed(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindCallFailed,
		Detail: fmt.Sprintf("invoke %q", name),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NotInitialized creates a not-initialized error for a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Closed reports an operation against an already-closed component.
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
