package engine

import (
	"context"
	"os"
	"sync"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/leegramling/modhost"
	"github.com/leegramling/modhost/errors"
)

// Module is a loaded shared module. It is created by Engine.Load and
// destroyed by Release; all handles resolved from it are valid only until
// Release. The exported counter global is shared mutable state with no
// synchronization of its own, per the contract.
type Module struct {
	logger   *zap.Logger
	instance api.Module
	compiled wazero.CompiledModule
	id       string
	path     string

	mu       sync.Mutex
	released bool
	callback modhost.Callback
	notices  []int32
}

// Load resolves a shared module by path: read, compile, instantiate. The
// module's load hook (start section) fires during instantiation, before Load
// returns. A missing file, an invalid binary, or a link-time failure all
// surface as ModuleNotFound carrying the underlying diagnostic.
func (e *Engine) Load(ctx context.Context, path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ModuleNotFound(path, err)
	}
	return e.load(ctx, path, data)
}

// LoadBytes is Load for an in-memory module binary.
func (e *Engine) LoadBytes(ctx context.Context, name string, data []byte) (*Module, error) {
	return e.load(ctx, name, data)
}

func (e *Engine) load(ctx context.Context, path string, data []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.ModuleNotFound(path, err)
	}

	m := &Module{
		logger:   e.logger,
		compiled: compiled,
		id:       uuid.NewString(),
		path:     path,
	}

	// The handle rides the context so the start section's notify import can
	// find it during instantiation.
	instance, err := e.runtime.InstantiateModule(withModule(ctx, m), compiled,
		wazero.NewModuleConfig().WithName(m.id))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.ModuleNotFound(path, err)
	}
	m.instance = instance

	e.logger.Info("module loaded",
		zap.String("id", m.id),
		zap.String("path", path),
		zap.String("size", units.HumanSize(float64(len(data)))))

	return m, nil
}

// ID is the unique identifier assigned to this load.
func (m *Module) ID() string { return m.id }

// Path is the path the module was resolved from.
func (m *Module) Path() string { return m.path }

// ResolveFunction resolves an exported function by name.
func (m *Module) ResolveFunction(name string) (*Function, error) {
	if m.isReleased() {
		return nil, errors.Released("module " + m.id)
	}
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return nil, errors.SymbolNotFound(name)
	}
	return &Function{mod: m, name: name, fn: fn}, nil
}

// ResolveGlobal resolves an exported global by name.
func (m *Module) ResolveGlobal(name string) (*Global, error) {
	if m.isReleased() {
		return nil, errors.Released("module " + m.id)
	}
	g := m.instance.ExportedGlobal(name)
	if g == nil {
		return nil, errors.SymbolNotFound(name)
	}
	return &Global{mod: m, name: name, global: g}, nil
}

// WriteMemory copies data into module memory at offset.
func (m *Module) WriteMemory(offset uint32, data []byte) error {
	if m.isReleased() {
		return errors.Released("module " + m.id)
	}
	if !m.instance.Memory().Write(offset, data) {
		return errors.InvalidArgument(errors.PhaseInvoke, "memory write out of range")
	}
	return nil
}

// ReadMemory copies count bytes out of module memory at offset.
func (m *Module) ReadMemory(offset, count uint32) ([]byte, error) {
	if m.isReleased() {
		return nil, errors.Released("module " + m.id)
	}
	data, ok := m.instance.Memory().Read(offset, count)
	if !ok {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, "memory read out of range")
	}
	// The returned slice aliases module memory; copy so later calls cannot
	// rewrite it behind the caller's back.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// SetCallback installs the host callback the module's callback import
// dispatches to. Passing nil uninstalls it.
func (m *Module) SetCallback(cb modhost.Callback) {
	m.mu.Lock()
	m.callback = cb
	m.mu.Unlock()
}

func (m *Module) installedCallback() modhost.Callback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callback
}

// Release unloads the module: the unload hook runs, then the instance is
// closed. The first call wins; further calls are no-ops. Every handle
// resolved from the module fails once Release has begun.
func (m *Module) Release(ctx context.Context) error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil
	}
	m.released = true
	m.mu.Unlock()

	// Unload hook is best effort: a hook failure must not prevent teardown.
	if hook := m.instance.ExportedFunction(modhost.SymbolOnUnload); hook != nil {
		if _, err := hook.Call(withModule(ctx, m)); err != nil {
			m.logger.Warn("unload hook failed", zap.String("id", m.id), zap.Error(err))
		}
	}

	if err := m.instance.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseRelease, errors.KindInvalidData, err, "close instance")
	}
	if err := m.compiled.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseRelease, errors.KindInvalidData, err, "close compiled module")
	}

	m.logger.Info("module released", zap.String("id", m.id))
	return nil
}

func (m *Module) isReleased() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func (m *Module) recordNotice(code int32) {
	m.mu.Lock()
	m.notices = append(m.notices, code)
	m.mu.Unlock()

	switch code {
	case modhost.NotifyLoad:
		m.logger.Info("module load hook fired", zap.String("id", m.id))
	case modhost.NotifyUnload:
		m.logger.Info("module unload hook fired", zap.String("id", m.id))
	case modhost.NotifyInit:
		m.logger.Info("module initialized", zap.String("id", m.id))
	default:
		m.logger.Debug("module notice", zap.String("id", m.id), zap.Int32("code", code))
	}
}

// Notices returns the lifecycle notices received so far, in order.
func (m *Module) Notices() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int32, len(m.notices))
	copy(out, m.notices)
	return out
}

// Function is a resolved exported function.
type Function struct {
	mod  *Module
	fn   api.Function
	name string
}

// Name returns the export name the function was resolved under.
func (f *Function) Name() string { return f.name }

// Definition exposes the wazero signature for surface validation.
func (f *Function) Definition() api.FunctionDefinition {
	return f.fn.Definition()
}

// Call invokes the function. Raw i32 values travel as the low 32 bits of
// each uint64, matching the wazero calling convention.
func (f *Function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if f.mod.isReleased() {
		return nil, errors.Released("function " + f.name)
	}
	results, err := f.fn.Call(withModule(ctx, f.mod), params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidData, err, "call "+f.name)
	}
	return results, nil
}

// Global is a resolved exported global: the mutable memory cell the module
// owns and the host holds a reference to.
type Global struct {
	mod    *Module
	global api.Global
	name   string
}

// Get reads the cell.
func (g *Global) Get() (int32, error) {
	if g.mod.isReleased() {
		return 0, errors.Released("global " + g.name)
	}
	return int32(uint32(g.global.Get())), nil
}

// Set writes the cell directly, without going through any module operation.
func (g *Global) Set(v int32) error {
	if g.mod.isReleased() {
		return errors.Released("global " + g.name)
	}
	mutable, ok := g.global.(api.MutableGlobal)
	if !ok {
		return errors.TypeMismatch(g.name, "mutable global", "immutable global")
	}
	mutable.Set(uint64(uint32(v)))
	return nil
}
