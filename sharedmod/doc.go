// Package sharedmod emits the reference shared module as a WebAssembly
// binary.
//
// The module is assembled section by section with LEB128 writers, so every
// length field is computed from the encoded bytes. No external toolchain is
// involved: Build returns a complete core module and WriteFile puts it on
// disk for the CLI demo, playing the role the compiled shared library plays
// in the classic dlopen exercise.
//
// The emitted export surface is the one the loader package binds:
// lib_initialize, lib_process_data, lib_execute_callback,
// lib_increment_counter, lib_version, the mutable global lib_global_counter,
// lib_on_unload, and the module memory. The start section acts as the load
// hook and fires exactly once at instantiation.
package sharedmod
