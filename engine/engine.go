package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/leegramling/modhost"
	"github.com/leegramling/modhost/errors"
)

// Engine owns a wazero runtime and the instantiated host module every shared
// module links against. One Engine can load any number of modules; each load
// produces an independent handle.
type Engine struct {
	runtime wazero.Runtime
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine and instantiates the host module providing the
// callback and notify imports.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	e.runtime = wazero.NewRuntime(ctx)

	_, err := e.runtime.NewHostModuleBuilder(modhost.HostModule).
		NewFunctionBuilder().WithFunc(callbackTrampoline).Export(modhost.ImportCallback).
		NewFunctionBuilder().WithFunc(notifyTrampoline).Export(modhost.ImportNotify).
		Instantiate(ctx)
	if err != nil {
		e.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseHost, errors.KindNotInitialized, err, "instantiate host module")
	}

	return e, nil
}

// Close releases all engine resources. Modules still loaded are closed with
// the runtime; prefer releasing them explicitly first so their unload hooks
// fire.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// callbackTrampoline dispatches the host callback import to the Go callback
// currently installed on the module being invoked.
func callbackTrampoline(ctx context.Context, value int32) int32 {
	m := moduleFromContext(ctx)
	if m == nil {
		panic("host callback invoked outside a module call")
	}
	cb := m.installedCallback()
	if cb == nil {
		panic("host callback invoked with none installed")
	}
	return cb(value)
}

// notifyTrampoline receives lifecycle notices from the module.
func notifyTrampoline(ctx context.Context, code int32) {
	if m := moduleFromContext(ctx); m != nil {
		m.recordNotice(code)
	}
}

// ctxKey carries the module handle through wazero into host imports.
type ctxKey struct{}

func withModule(ctx context.Context, m *Module) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

func moduleFromContext(ctx context.Context) *Module {
	m, _ := ctx.Value(ctxKey{}).(*Module)
	return m
}
