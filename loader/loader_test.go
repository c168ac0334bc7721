package loader

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leegramling/modhost"
	"github.com/leegramling/modhost/engine"
	"github.com/leegramling/modhost/errors"
	"github.com/leegramling/modhost/sharedmod"
)

func bindReference(t *testing.T) (*Bindings, context.Context) {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })

	mod, err := eng.LoadBytes(ctx, "reference", sharedmod.Build())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	b, err := BindModule(ctx, mod, DefaultSurface(), nil)
	if err != nil {
		t.Fatalf("BindModule: %v", err)
	}
	t.Cleanup(func() { b.Release(ctx) })
	return b, ctx
}

func TestParseSurface_Default(t *testing.T) {
	s := DefaultSurface()

	want := []string{
		modhost.SymbolInitialize,
		modhost.SymbolProcessData,
		modhost.SymbolExecuteCallback,
		modhost.SymbolIncrementCounter,
		modhost.SymbolVersion,
	}
	got := s.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if desc := s.Describe(modhost.SymbolProcessData); desc != "(i32,i32,i32,i32)->(i32)" {
		t.Errorf("Describe(lib_process_data) = %q", desc)
	}
	if desc := s.Describe(modhost.SymbolVersion); desc != "()->(i32,i32)" {
		t.Errorf("Describe(lib_version) = %q", desc)
	}
	if desc := s.Describe(modhost.SymbolIncrementCounter); desc != "()->()" {
		t.Errorf("Describe(lib_increment_counter) = %q", desc)
	}
}

func TestParseSurface_Errors(t *testing.T) {
	if _, err := ParseSurface("no declarations here"); err == nil {
		t.Error("expected error for empty surface")
	}
	if _, err := ParseSurface("f: func(x: not-a-type);"); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := ParseSurface("f: func();\nf: func();"); err == nil {
		t.Error("expected error for duplicate declaration")
	}
}

func TestBind_MissingPath(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close(ctx)

	_, err = Bind(ctx, eng, filepath.Join(t.TempDir(), "missing.wasm"), nil, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindModuleNotFound}) {
		t.Errorf("want module_not_found, got %v", err)
	}
}

func TestBind_MissingSymbolReleasesModule(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadBytes(ctx, "reference", sharedmod.Build())
	if err != nil {
		t.Fatal(err)
	}

	surface := MustParseSurface(defaultSurfaceText + "\nlib_not_there: func();")
	_, err = BindModule(ctx, mod, surface, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseSymbol, Kind: errors.KindSymbolNotFound}) {
		t.Fatalf("want symbol_not_found, got %v", err)
	}
	if !strings.Contains(err.Error(), "lib_not_there") {
		t.Errorf("error should name the missing export: %v", err)
	}

	// The module must already be released when binding fails.
	if _, err := mod.ResolveFunction(modhost.SymbolInitialize); err == nil {
		t.Error("module still usable after failed binding")
	}
}

func TestBind_SignatureMismatchReleasesModule(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadBytes(ctx, "reference", sharedmod.Build())
	if err != nil {
		t.Fatal(err)
	}

	surface := MustParseSurface("lib_initialize: func(bogus: s64) -> s32;")
	_, err = BindModule(ctx, mod, surface, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseSymbol, Kind: errors.KindTypeMismatch}) {
		t.Fatalf("want type_mismatch, got %v", err)
	}
	if _, err := mod.ResolveFunction(modhost.SymbolInitialize); err == nil {
		t.Error("module still usable after failed binding")
	}
}

func TestInitialize(t *testing.T) {
	b, ctx := bindReference(t)

	status, err := b.Initialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestProcessData(t *testing.T) {
	b, ctx := bindReference(t)

	tests := []struct {
		input string
		want  string
	}{
		{"Hello Dynamic Library", "YRARBIL CIMANYD OLLEH"},
		{"abc", "CBA"},
		{"ALREADY UPPER", "REPPU YDAERLA"},
		{"", ""},
		{"a1b2", "2B1A"},
		{"mixed Case 42!", "!24 ESAC DEXIM"},
	}
	for _, tt := range tests {
		got, n, err := b.ProcessData(ctx, tt.input, 256)
		if err != nil {
			t.Errorf("ProcessData(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ProcessData(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if n != int32(len(tt.input)) {
			t.Errorf("ProcessData(%q) count = %d, want %d", tt.input, n, len(tt.input))
		}
	}
}

func TestProcessData_ZeroCapacity(t *testing.T) {
	b, ctx := bindReference(t)

	_, _, err := b.ProcessData(ctx, "abc", 0)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindInvalidArg}) {
		t.Errorf("want invalid_argument, got %v", err)
	}
}

func TestProcessData_BufferTooSmall(t *testing.T) {
	b, ctx := bindReference(t)

	for _, capacity := range []uint32{1, 3, 5} {
		_, status, err := b.ProcessData(ctx, "hello", capacity)
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindBufferTooSmall}) {
			t.Errorf("capacity %d: want buffer_too_small, got %v", capacity, err)
		}
		if status != -2 {
			t.Errorf("capacity %d: status = %d, want -2", capacity, status)
		}
	}

	// One byte of headroom for the terminator is enough.
	got, _, err := b.ProcessData(ctx, "hello", 6)
	if err != nil {
		t.Fatalf("capacity 6: %v", err)
	}
	if got != "OLLEH" {
		t.Errorf("got %q", got)
	}
}

func TestExecuteCallback(t *testing.T) {
	b, ctx := bindReference(t)

	doubling := func(v int32) int32 { return v * 2 }

	got, err := b.ExecuteCallback(ctx, doubling, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got != 174 {
		t.Errorf("ExecuteCallback(doubling, 7) = %d, want 174", got)
	}

	identity := func(v int32) int32 { return v }
	for _, v := range []int32{0, 1, -1, 100, -50} {
		got, err := b.ExecuteCallback(ctx, identity, v)
		if err != nil {
			t.Fatal(err)
		}
		if want := v*11 + 10; got != want {
			t.Errorf("ExecuteCallback(identity, %d) = %d, want %d", v, got, want)
		}
	}
}

func TestExecuteCallback_NilCallback(t *testing.T) {
	b, ctx := bindReference(t)

	_, err := b.ExecuteCallback(ctx, nil, 7)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindInvalidArg}) {
		t.Errorf("want invalid_argument, got %v", err)
	}
}

func TestCounter(t *testing.T) {
	b, ctx := bindReference(t)

	v, err := b.Counter.Get()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("fresh counter = %d", v)
	}

	const n = 4
	for i := 0; i < n; i++ {
		if err := b.IncrementCounter(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := b.Counter.Get(); v != n {
		t.Errorf("counter = %d after %d increments", v, n)
	}

	// Direct write through the resolved handle, visible to the module.
	if err := b.Counter.Set(99); err != nil {
		t.Fatal(err)
	}
	if err := b.IncrementCounter(ctx); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Counter.Get(); v != 100 {
		t.Errorf("counter = %d, want 100", v)
	}
}

func TestVersion(t *testing.T) {
	b, ctx := bindReference(t)

	v, err := b.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != sharedmod.Version {
		t.Errorf("version = %q, want %q", v, sharedmod.Version)
	}
}

func TestRelease_HandlesFailAfterwards(t *testing.T) {
	b, ctx := bindReference(t)

	if err := b.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Release(ctx); err != nil {
		t.Errorf("double release: %v", err)
	}

	if _, err := b.Initialize(ctx); err == nil {
		t.Error("Initialize after release should fail")
	}
	if _, err := b.Counter.Get(); err == nil {
		t.Error("Counter.Get after release should fail")
	}
}
