// Package host drives a shared module end to end: resolve by path, bind the
// export surface, initialize, run the data transform, execute the
// host-supplied callback, exercise the shared counter, and release.
//
// Failure semantics follow the loading contract: resolution and binding
// failures abort the whole sequence (the module is already released when Run
// returns the error); failures of individual operations are collected in the
// Report and later independent steps still run. Release always happens
// exactly once.
package host
