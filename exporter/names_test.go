package exporter

import "testing"

func TestAllocatorUnique(t *testing.T) {
	reserved := []string{"class", "index", "int"}
	a := NewNameAllocator(reserved, Identifier)

	seen := make(map[string]bool)
	for _, name := range []string{"x", "x", "class", "int", "x_", "a-b", "a_b", "", "", "9lives"} {
		got := a.Allocate(name)
		if seen[got] {
			t.Fatalf("%q allocated twice", got)
		}
		if a.Reserved(got) {
			t.Fatalf("%q is reserved", got)
		}
		seen[got] = true
	}
}

func TestAllocatorSuffixRule(t *testing.T) {
	a := NewNameAllocator([]string{"index"}, nil)
	tests := []struct {
		in   string
		want string
	}{
		{"index", "index_"},
		{"index", "index__"},
		{"value", "value"},
		{"value", "value_"},
		{"value_", "value__"},
	}
	for _, tt := range tests {
		if got := a.Allocate(tt.in); got != tt.want {
			t.Errorf("Allocate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"":          "_",
		"abc":       "abc",
		"1abc":      "_1abc",
		"a.b":       "a_b",
		"$x_1":      "$x_1",
		"héllo":     "h_llo",
		"env::fn()": "env__fn__",
	}
	for in, want := range tests {
		if got := Identifier(in); got != want {
			t.Errorf("Identifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuffer(t *testing.T) {
	var b Buffer
	b.Line("class A {")
	b.Block("void f() {", "}", func() {
		b.Line("x = 1;\ny = 2;")
	})
	b.Line("}")

	if b.Len() != 6 {
		t.Fatalf("Len = %d, want 6", b.Len())
	}
	want := "class A {\n    void f() {\n        x = 1;\n        y = 2;\n    }\n}\n"
	if got := b.String(); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}

	var other Buffer
	other.Append(&b)
	other.Append(nil)
	if other.Len() != b.Len() {
		t.Fatalf("Append copied %d lines", other.Len())
	}

	var empty Buffer
	if empty.String() != "" {
		t.Fatalf("empty buffer = %q", empty.String())
	}
}
