package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/leegramling/modhost"
	"github.com/leegramling/modhost/engine"
	"github.com/leegramling/modhost/errors"
)

// Bindings is the resolved capability set of a loaded module: one handle per
// export, populated up front so call sites never check symbol presence.
type Bindings struct {
	// Counter is the module's exported counter cell. Reads and writes go
	// straight to module state; lib_increment_counter and direct Set both
	// mutate the same cell.
	Counter *engine.Global

	mod              *engine.Module
	logger           *zap.Logger
	initialize       *engine.Function
	processData      *engine.Function
	executeCallback  *engine.Function
	incrementCounter *engine.Function
	version          *engine.Function
}

// Bind resolves a module by path and binds the declared surface.
// Resolution is exhaustive and fail-fast: every export is resolved and
// signature-checked before anything is invoked, and on any failure the
// module is released before Bind returns. Partial binding is never an end
// state.
func Bind(ctx context.Context, eng *engine.Engine, path string, surface *Surface, logger *zap.Logger) (*Bindings, error) {
	mod, err := eng.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return BindModule(ctx, mod, surface, logger)
}

// BindModule binds the declared surface of an already-loaded module. On
// failure the module is released.
func BindModule(ctx context.Context, mod *engine.Module, surface *Surface, logger *zap.Logger) (*Bindings, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if surface == nil {
		surface = DefaultSurface()
	}

	funcs := make(map[string]*engine.Function, len(surface.names))
	for _, name := range surface.names {
		fn, err := mod.ResolveFunction(name)
		if err != nil {
			releaseAfterBindFailure(ctx, mod, logger, name, err)
			return nil, err
		}
		if err := surface.check(name, fn.Definition()); err != nil {
			releaseAfterBindFailure(ctx, mod, logger, name, err)
			return nil, err
		}
		funcs[name] = fn
	}

	var counter *engine.Global
	for _, name := range requiredGlobals {
		g, err := mod.ResolveGlobal(name)
		if err != nil {
			releaseAfterBindFailure(ctx, mod, logger, name, err)
			return nil, err
		}
		counter = g
	}

	b := &Bindings{
		Counter:          counter,
		mod:              mod,
		logger:           logger,
		initialize:       funcs[modhost.SymbolInitialize],
		processData:      funcs[modhost.SymbolProcessData],
		executeCallback:  funcs[modhost.SymbolExecuteCallback],
		incrementCounter: funcs[modhost.SymbolIncrementCounter],
		version:          funcs[modhost.SymbolVersion],
	}

	logger.Debug("surface bound",
		zap.String("module", mod.ID()),
		zap.Strings("symbols", surface.Names()))
	return b, nil
}

func releaseAfterBindFailure(ctx context.Context, mod *engine.Module, logger *zap.Logger, symbol string, cause error) {
	logger.Warn("binding failed, releasing module",
		zap.String("module", mod.ID()),
		zap.String("symbol", symbol),
		zap.Error(cause))
	if err := mod.Release(ctx); err != nil {
		logger.Warn("release after failed binding", zap.Error(err))
	}
}

// Module returns the underlying module handle.
func (b *Bindings) Module() *engine.Module { return b.mod }

// Release unloads the module. Safe to call more than once.
func (b *Bindings) Release(ctx context.Context) error {
	return b.mod.Release(ctx)
}

// Initialize invokes lib_initialize and returns its status code.
func (b *Bindings) Initialize(ctx context.Context) (int32, error) {
	res, err := b.initialize.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(uint32(res[0])), nil
}

// ProcessData runs the module's transform over input with the given output
// capacity. It returns the transformed text and the byte count the module
// reported. The input must fit the exchange region and capacity may not
// exceed it.
func (b *Bindings) ProcessData(ctx context.Context, input string, capacity uint32) (string, int32, error) {
	if capacity == 0 {
		return "", 0, errors.InvalidArgument(errors.PhaseInvoke, "output capacity is zero")
	}
	if maxInput := modhost.OutputOffset - modhost.InputOffset; uint32(len(input)) > maxInput {
		return "", 0, errors.InvalidArgument(errors.PhaseInvoke, "input exceeds exchange region")
	}
	if maxCap := modhost.PageSize - modhost.OutputOffset; capacity > maxCap {
		return "", 0, errors.InvalidArgument(errors.PhaseInvoke, "capacity exceeds exchange region")
	}

	if err := b.mod.WriteMemory(modhost.InputOffset, []byte(input)); err != nil {
		return "", 0, err
	}

	res, err := b.processData.Call(ctx,
		uint64(modhost.InputOffset),
		uint64(uint32(len(input))),
		uint64(modhost.OutputOffset),
		uint64(capacity))
	if err != nil {
		return "", 0, err
	}

	status := int32(uint32(res[0]))
	switch {
	case status == -1:
		return "", status, errors.InvalidArgument(errors.PhaseInvoke, "module rejected arguments")
	case status == -2:
		return "", status, errors.BufferTooSmall(uint32(len(input)), capacity)
	case status < 0:
		return "", status, errors.InvalidData(errors.PhaseInvoke, "unknown process status")
	}

	out, err := b.mod.ReadMemory(modhost.OutputOffset, uint32(status))
	if err != nil {
		return "", status, err
	}
	return string(out), status, nil
}

// ExecuteCallback passes value through the module transform and into cb,
// returning cb's result as the module reports it.
func (b *Bindings) ExecuteCallback(ctx context.Context, cb modhost.Callback, value int32) (int32, error) {
	if cb == nil {
		return 0, errors.InvalidArgument(errors.PhaseInvoke, "nil callback")
	}

	b.mod.SetCallback(cb)
	defer b.mod.SetCallback(nil)

	res, err := b.executeCallback.Call(ctx, uint64(uint32(value)))
	if err != nil {
		return 0, err
	}
	return int32(uint32(res[0])), nil
}

// IncrementCounter adds one to the shared counter.
func (b *Bindings) IncrementCounter(ctx context.Context) error {
	_, err := b.incrementCounter.Call(ctx)
	return err
}

// Version reads the module's version string.
func (b *Bindings) Version(ctx context.Context) (string, error) {
	res, err := b.version.Call(ctx)
	if err != nil {
		return "", err
	}
	data, err := b.mod.ReadMemory(uint32(res[0]), uint32(res[1]))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
