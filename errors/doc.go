// Package errors provides structured error types for the module host runtime.
//
// Errors are categorized by Phase (where in the load/bind/invoke/release
// sequence the error occurred) and Kind (error category). Convenience
// constructors cover the vocabulary of the loading contract:
//
//	err := errors.ModuleNotFound("./shared.wasm", cause)
//	err := errors.SymbolNotFound("lib_initialize")
//	err := errors.BufferTooSmall(21, 8)
//
// All errors implement the standard error interface and support errors.Is/As;
// Is matches on Phase and Kind, so sentinel comparisons like
//
//	errors.Is(err, &errors.Error{Phase: errors.PhaseSymbol, Kind: errors.KindSymbolNotFound})
//
// work without retaining the concrete error value.
package errors
