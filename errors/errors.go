package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the load/bind/invoke/release sequence the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // module path resolution and compilation
	PhaseSymbol  Phase = "symbol"  // export lookup
	PhaseInvoke  Phase = "invoke"  // calling a resolved export
	PhaseRelease Phase = "release" // module teardown
	PhaseParse   Phase = "parse"   // surface declaration parsing
	PhaseHost    Phase = "host"    // host function setup
)

// Kind categorizes the error
type Kind string

const (
	KindModuleNotFound Kind = "module_not_found"
	KindSymbolNotFound Kind = "symbol_not_found"
	KindInvalidArg     Kind = "invalid_argument"
	KindBufferTooSmall Kind = "buffer_too_small"
	KindInvalidData    Kind = "invalid_data"
	KindTypeMismatch   Kind = "type_mismatch"
	KindNotInitialized Kind = "not_initialized"
	KindReleased       Kind = "released"
)

// Error is the structured error type used throughout the host runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Symbol string
	Path   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" at ")
		b.WriteString(e.Symbol)
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteByte(')')
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

// Convenience constructors for the error vocabulary of the loading contract

// ModuleNotFound reports an unresolvable module path. The cause carries the
// underlying diagnostic (missing file, invalid binary, link failure).
func ModuleNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindModuleNotFound,
		Path:   path,
		Detail: "cannot resolve module",
		Cause:  cause,
	}
}

// SymbolNotFound reports a named export absent from the module's export table.
func SymbolNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseSymbol,
		Kind:   KindSymbolNotFound,
		Symbol: name,
		Detail: "export not present in module",
	}
}

// InvalidArgument reports a null or zero-sized input to an operation.
func InvalidArgument(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArg,
		Detail: detail,
	}
}

// BufferTooSmall reports an output capacity insufficient for the result.
func BufferTooSmall(need, capacity uint32) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindBufferTooSmall,
		Detail: fmt.Sprintf("need %d bytes plus terminator, capacity %d", need, capacity),
	}
}

// TypeMismatch reports a resolved export whose signature disagrees with the
// declared surface.
func TypeMismatch(symbol, want, got string) *Error {
	return &Error{
		Phase:  PhaseSymbol,
		Kind:   KindTypeMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("declared %s, module exports %s", want, got),
	}
}

// Released reports use of a handle after the module was released.
func Released(what string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindReleased,
		Detail: fmt.Sprintf("%s used after module release", what),
	}
}

// NotInitialized reports a missing prerequisite (engine, handle).
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidData reports malformed data with a free-form detail.
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
