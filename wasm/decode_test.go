package wasm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func i32Const(v int32) []byte {
	return EncodeInstructions([]Instruction{
		{Opcode: OpI32Const, Imm: I32Imm{Value: v}},
		{Opcode: OpEnd},
	})
}

func sampleModule() *Module {
	maxPages := uint32(2)
	return &Module{
		Types: []FuncType{
			{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
			{},
		},
		Imports: []Import{
			{Module: "env", Name: "___syscall146", Desc: ImportDesc{Kind: KindFunc, TypeIdx: 0}},
			{Module: "env", Name: "STACKTOP", Desc: ImportDesc{Kind: KindGlobal, Global: &GlobalType{ValType: ValI32}}},
		},
		Funcs:    []uint32{0, 1},
		Tables:   []TableType{{ElemType: byte(ValFuncRef), Limits: Limits{Min: 2}}},
		Memories: []MemoryType{{Limits: Limits{Min: 1, Max: &maxPages}}},
		Globals:  []Global{{Type: GlobalType{ValType: ValI32, Mutable: true}, Init: i32Const(1024)}},
		Exports: []Export{
			{Name: "add", Kind: KindFunc, Idx: 1},
			{Name: "memory", Kind: KindMemory, Idx: 0},
		},
		Elements: []Element{{Offset: i32Const(0), FuncIdxs: []uint32{1, 2}}},
		Code: []FuncBody{
			{Code: EncodeInstructions([]Instruction{
				{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
				{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
				{Opcode: OpI32Add},
				{Opcode: OpEnd},
			})},
			{Locals: []LocalEntry{{Count: 2, ValType: ValF64}}, Code: []byte{OpEnd}},
		},
		Data: []DataSegment{
			{Offset: i32Const(8), Init: []byte("hello")},
			{Init: []byte{1, 2, 3}},
		},
		Names: &NameSection{
			Module: "sample",
			Funcs:  map[uint32]string{1: "_add", 2: "_nop"},
			Locals: map[uint32]map[uint32]string{1: {0: "lhs", 1: "rhs"}},
		},
	}
}

func TestParseModuleRoundTrip(t *testing.T) {
	data := sampleModule().Encode()

	m, err := ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if len(m.Types) != 2 || len(m.Types[0].Params) != 2 {
		t.Fatalf("types = %+v", m.Types)
	}
	if m.NumImportedFuncs() != 1 || m.NumImportedGlobals() != 1 {
		t.Fatalf("imports = %+v", m.Imports)
	}
	if m.Imports[1].Desc.Global == nil || m.Imports[1].Desc.Global.ValType != ValI32 {
		t.Fatalf("global import = %+v", m.Imports[1].Desc)
	}
	if len(m.Memories) != 1 || m.Memories[0].Limits.Max == nil || *m.Memories[0].Limits.Max != 2 {
		t.Fatalf("memories = %+v", m.Memories)
	}
	if len(m.Elements) != 1 || len(m.Elements[0].FuncIdxs) != 2 {
		t.Fatalf("elements = %+v", m.Elements)
	}
	if len(m.Data) != 2 || !bytes.Equal(m.Data[0].Init, []byte("hello")) || m.Data[1].Offset != nil {
		t.Fatalf("data = %+v", m.Data)
	}
	if m.Code[1].Locals[0].Count != 2 || m.Code[1].Locals[0].ValType != ValF64 {
		t.Fatalf("locals = %+v", m.Code[1].Locals)
	}

	if name, ok := m.FuncName(1); !ok || name != "_add" {
		t.Fatalf("FuncName(1) = %q, %v", name, ok)
	}
	if _, ok := m.FuncName(0); ok {
		t.Fatal("import has no debug name")
	}
	if name, ok := m.LocalName(1, 1); !ok || name != "rhs" {
		t.Fatalf("LocalName(1, 1) = %q, %v", name, ok)
	}
	if m.Names.Module != "sample" {
		t.Fatalf("module name = %q", m.Names.Module)
	}
}

func TestGetFuncType(t *testing.T) {
	m := sampleModule()
	if ft := m.GetFuncType(0); ft == nil || len(ft.Params) != 2 {
		t.Fatalf("import type = %+v", ft)
	}
	if ft := m.GetFuncType(2); ft == nil || len(ft.Params) != 0 {
		t.Fatalf("defined type = %+v", ft)
	}
	if ft := m.GetFuncType(9); ft != nil {
		t.Fatalf("out of range should be nil, got %+v", ft)
	}
}

func TestAddTypeReusesEqual(t *testing.T) {
	m := &Module{}
	a := m.AddType(FuncType{Params: []ValType{ValI32}})
	b := m.AddType(FuncType{Params: []ValType{ValI32}})
	c := m.AddType(FuncType{Params: []ValType{ValI64}})
	if a != b || a == c || len(m.Types) != 2 {
		t.Fatalf("a=%d b=%d c=%d types=%d", a, b, c, len(m.Types))
	}
}

func TestParseModuleErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "header"},
		{"magic", []byte{0, 'a', 's', 'n', 1, 0, 0, 0}, "magic"},
		{"version", []byte{0, 'a', 's', 'm', 2, 0, 0, 0}, "version"},
		{"unknown section", []byte{0, 'a', 's', 'm', 1, 0, 0, 0, 0x20, 0x00}, "unknown section"},
		{"out of order", []byte{0, 'a', 's', 'm', 1, 0, 0, 0, 3, 1, 0, 1, 1, 0}, "out of order"},
		{"v128 param", []byte{0, 'a', 's', 'm', 1, 0, 0, 0, 1, 5, 1, 0x60, 1, 0x7B, 0}, "unsupported value type"},
		{"truncated section", []byte{0, 'a', 's', 'm', 1, 0, 0, 0, 1, 9, 1}, "section data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModule(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	_, err := ParseModule([]byte{0, 'a', 's', 'n', 1, 0, 0, 0})
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestParseModuleCodeCountMismatch(t *testing.T) {
	m := sampleModule()
	m.Code = m.Code[:1]
	if _, err := ParseModule(m.Encode()); err == nil || !strings.Contains(err.Error(), "differ") {
		t.Fatalf("expected size mismatch error, got %v", err)
	}
}

func TestBrokenNameSectionIgnored(t *testing.T) {
	m := sampleModule()
	m.Names = nil
	data := m.Encode()
	// custom "name" section whose function subsection is truncated
	data = append(data, 0x00, 0x08, 0x04, 'n', 'a', 'm', 'e', 0x01, 0x05, 0x01)

	parsed, err := ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if parsed.Names != nil {
		t.Fatalf("expected names to be dropped, got %+v", parsed.Names)
	}
	if len(parsed.CustomSections) != 1 {
		t.Fatalf("custom sections = %d", len(parsed.CustomSections))
	}
}
