// Package loader binds the declared export surface of a shared module into
// a capability struct.
//
// The surface is declared as WIT-style signatures and resolved exhaustively
// before any invocation: every function is looked up by its exact export
// name and checked against the declared signature, and the module's counter
// global is resolved alongside. If any symbol is missing or mismatched, the
// module is released and binding fails as a whole, so a partially-bound
// module never escapes.
//
//	b, err := loader.Bind(ctx, eng, "shared.wasm", loader.DefaultSurface(), logger)
//	if err != nil {
//	    return err // module already released
//	}
//	defer b.Release(ctx)
//
//	text, n, err := b.ProcessData(ctx, "Hello Dynamic Library", 256)
package loader
