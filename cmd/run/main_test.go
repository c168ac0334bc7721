package main

import (
	"path/filepath"
	"testing"
)

func TestSamePath(t *testing.T) {
	cases := []struct {
		event string
		path  string
		want  bool
	}{
		{"mod.wasm", "mod.wasm", true},
		{"mod.wasm", "./mod.wasm", true},
		{filepath.Join("build", "mod.wasm"), "build//mod.wasm", true},
		{"mod.wasm", "other.wasm", false},
		{filepath.Join("build", "mod.wasm"), "mod.wasm", false},
	}
	for _, c := range cases {
		if got := samePath(c.event, c.path); got != c.want {
			t.Errorf("samePath(%q, %q) = %v, want %v", c.event, c.path, got, c.want)
		}
	}
}
