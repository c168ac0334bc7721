package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "module not found carries path and cause",
			err:  ModuleNotFound("./missing.wasm", fmt.Errorf("no such file")),
			want: []string{"[resolve]", "module_not_found", "./missing.wasm", "no such file"},
		},
		{
			name: "symbol not found names the export",
			err:  SymbolNotFound("lib_initialize"),
			want: []string{"[symbol]", "symbol_not_found", "at lib_initialize"},
		},
		{
			name: "buffer too small reports sizes",
			err:  BufferTooSmall(21, 8),
			want: []string{"[invoke]", "buffer_too_small", "need 21", "capacity 8"},
		},
		{
			name: "type mismatch names both signatures",
			err:  TypeMismatch("lib_process_data", "(i32,i32,i32,i32)->i32", "(i32)->i32"),
			want: []string{"at lib_process_data", "declared (i32,i32,i32,i32)->i32"},
		},
		{
			name: "released handle",
			err:  Released("function lib_increment_counter"),
			want: []string{"released", "after module release"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, frag := range tt.want {
				if !strings.Contains(msg, frag) {
					t.Errorf("message %q missing %q", msg, frag)
				}
			}
		})
	}
}

func TestIs_MatchesPhaseAndKind(t *testing.T) {
	err := SymbolNotFound("lib_version")

	if !stderrors.Is(err, &Error{Phase: PhaseSymbol, Kind: KindSymbolNotFound}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseResolve, Kind: KindSymbolNotFound}) {
		t.Error("should not match a different phase")
	}
	if stderrors.Is(err, &Error{Phase: PhaseSymbol, Kind: KindTypeMismatch}) {
		t.Error("should not match a different kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := ModuleNotFound("/root/x.wasm", cause)

	if !stderrors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}

	var structured *Error
	if !stderrors.As(err, &structured) {
		t.Fatal("As should find the structured error")
	}
	if structured.Path != "/root/x.wasm" {
		t.Errorf("path = %q", structured.Path)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("trap: out of bounds")
	err := Wrap(PhaseInvoke, KindInvalidData, cause, "call lib_process_data")

	if err.Phase != PhaseInvoke || err.Kind != KindInvalidData {
		t.Errorf("wrap lost classification: %v %v", err.Phase, err.Kind)
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
}
