// Package engine is the module resolution boundary: it wraps wazero to
// resolve a shared module by path, resolve its exports by name, invoke them,
// and release the module exactly once.
//
// The engine instantiates a single host module providing the imports every
// shared module links against: the host-supplied callback and a lifecycle
// notify function. The module handle travels through the call context so
// those imports always dispatch to the handle being invoked, even when many
// modules share one engine.
//
// Lifecycle: Load fires the module's load hook (its start section) exactly
// once before returning. Release runs the unload hook exactly once, then
// closes the instance; double release is a safe no-op and every handle
// resolved from the module fails with a released error afterwards.
package engine
