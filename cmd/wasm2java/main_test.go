package main

import "testing"

func TestClassName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"hello.wasm", "Hello"},
		{"/tmp/out/hello-world.wasm", "Hello_world"},
		{"Module.wat", "Module"},
		{"2048.wasm", "_2048"},
	}
	for _, tt := range tests {
		if got := className(tt.path); got != tt.want {
			t.Errorf("className(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
