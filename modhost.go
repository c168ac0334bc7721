// Package modhost loads shared modules at run time and drives their exports.
//
// A shared module is a WebAssembly core module with a fixed, name-addressable
// export surface: a handful of functions, a mutable global counter, and
// lifecycle hooks that fire on load and unload. The host resolves the module
// by path, binds every export up front, invokes the operations (including one
// that calls back into a host-supplied function), and releases the module when
// done.
//
// # Architecture Overview
//
//	modhost/
//	├── errors/      Structured error types (phase + kind)
//	├── sharedmod/   The reference shared module, emitted as a wasm binary
//	├── engine/      wazero integration: load, resolve, invoke, release
//	├── loader/      Fail-fast binding of the declared export surface
//	├── host/        The demonstration drive sequence
//	└── cmd/run/     CLI: demo, -list, -emit, -watch, -i (inspector TUI)
//
// # Quick Start
//
//	eng, err := engine.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	report, err := host.Run(ctx, eng, "shared.wasm", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Processed) // "YRARBIL CIMANYD OLLEH"
//
// # Thread Safety
//
// The contract is single-threaded and synchronous. Module handles guard their
// lifecycle transitions and callback installation internally, but the exported
// counter is a shared mutable cell with no synchronization of its own; callers
// that spread one module across goroutines must serialize access themselves.
package modhost

// Export names a shared module must provide, looked up verbatim.
const (
	SymbolInitialize       = "lib_initialize"
	SymbolProcessData      = "lib_process_data"
	SymbolExecuteCallback  = "lib_execute_callback"
	SymbolIncrementCounter = "lib_increment_counter"
	SymbolVersion          = "lib_version"
	SymbolGlobalCounter    = "lib_global_counter"
	SymbolOnUnload         = "lib_on_unload"
	SymbolMemory           = "memory"
)

// Import names the host supplies to every shared module.
const (
	HostModule     = "host"
	ImportCallback = "callback"
	ImportNotify   = "notify"
)

// Notification codes a module passes to the host notify import.
const (
	NotifyLoad   int32 = 0
	NotifyUnload int32 = 1
	NotifyInit   int32 = 2
)

// Data exchange regions in module memory, fixed by convention. The host
// writes process input at InputOffset and the module writes transformed
// output at OutputOffset. A module reserves everything below InputOffset
// for its own data.
const (
	PageSize     uint32 = 64 * 1024
	InputOffset  uint32 = 1 << 10
	OutputOffset uint32 = 1 << 13
)

// Callback is the host-supplied function a module may invoke through
// lib_execute_callback. Invocation is synchronous and single-threaded.
type Callback func(value int32) int32
