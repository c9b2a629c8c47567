package wast

import (
	"math"
	"testing"
)

func TestOpMetadata(t *testing.T) {
	tests := []struct {
		op        Op
		name      string
		class     OpClass
		operand   Type
		result    Type
		intrinsic string
	}{
		{I32Add, "i32.add", ClassBinary, I32, I32, "Op_i32_add"},
		{I64Eqz, "i64.eqz", ClassTest, I64, I32, "Op_i64_eqz"},
		{F64Lt, "f64.lt", ClassCompare, F64, I32, "Op_f64_lt"},
		{F32DemoteF64, "f32.demote_f64", ClassConvert, F64, F32, "Op_f32_demote_f64"},
		{I64Load32U, "i64.load32_u", ClassLoad, I32, I64, "Op_i64_load32_u"},
		{I32Store8, "i32.store8", ClassStore, I32, Void, "Op_i32_store8"},
		{MemoryGrow, "memory.grow", ClassMemory, I32, I32, "Op_memory_grow"},
		{I64TruncSatF64U, "i64.trunc_sat_f64_u", ClassConvert, F64, I64, "Op_i64_trunc_sat_f64_u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.op.Valid() {
				t.Fatal("op should be valid")
			}
			if tt.op.Name() != tt.name || tt.op.String() != tt.name {
				t.Fatalf("name = %q", tt.op.Name())
			}
			if tt.op.Class() != tt.class {
				t.Fatalf("class = %d, want %d", tt.op.Class(), tt.class)
			}
			if tt.op.Operand() != tt.operand || tt.op.Result() != tt.result {
				t.Fatalf("types = %v -> %v", tt.op.Operand(), tt.op.Result())
			}
			if tt.op.Intrinsic() != tt.intrinsic {
				t.Fatalf("intrinsic = %q", tt.op.Intrinsic())
			}
		})
	}
}

func TestOpUnknown(t *testing.T) {
	op := Op(0x41) // i32.const is a node, not an operator
	if op.Valid() {
		t.Fatal("i32.const is not an operator")
	}
	if op.Name() != "op_0x41" {
		t.Fatalf("name = %q", op.Name())
	}
	if op.Class() != ClassInvalid {
		t.Fatalf("class = %d", op.Class())
	}
}

func TestIsBoolean(t *testing.T) {
	for _, op := range []Op{I32Eqz, I32LtU, F32Ge, I64Ne} {
		if !op.IsBoolean() {
			t.Fatalf("%s should be boolean", op)
		}
	}
	for _, op := range []Op{I32Add, F64Neg, I32WrapI64} {
		if op.IsBoolean() {
			t.Fatalf("%s should not be boolean", op)
		}
	}
}

func TestTraps(t *testing.T) {
	for _, op := range []Op{I32DivS, I32RemU, I64DivU, I64RemS, I32TruncF64U, I64TruncF32S} {
		if !op.Traps() {
			t.Fatalf("%s should trap", op)
		}
	}
	for _, op := range []Op{I32Add, F32Div, F64Trunc, I32TruncSatF32S, I64TruncSatF64U, I32WrapI64} {
		if op.Traps() {
			t.Fatalf("%s should not trap", op)
		}
	}
}

func TestSignatureKey(t *testing.T) {
	tests := []struct {
		sig  Signature
		want string
	}{
		{Signature{}, "pr"},
		{Signature{Params: []Type{I32, I64}, Result: F32}, "piIrf"},
		{Signature{Params: []Type{F64}, Result: I32}, "pFri"},
	}
	for _, tt := range tests {
		if got := tt.sig.Key(); got != tt.want {
			t.Fatalf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestConstAccessors(t *testing.T) {
	if c := I32Const(-5); c.I32() != -5 || c.Type != I32 || c.String() != "i32.const -5" {
		t.Fatalf("i32: %+v %s", c, c)
	}
	if c := I64Const(math.MinInt64); c.I64() != math.MinInt64 {
		t.Fatalf("i64: %d", c.I64())
	}
	if c := F32Const(1.25); c.F32() != 1.25 {
		t.Fatalf("f32: %v", c.F32())
	}
	nan := F64Const(math.NaN())
	if !math.IsNaN(nan.F64()) {
		t.Fatalf("f64 NaN lost: %v", nan.F64())
	}
}

func TestModuleImports(t *testing.T) {
	m := &Module{
		Funcs: []Func{
			{Name: "f0", Import: &Import{Namespace: "env", Name: "___syscall6"}},
			{Name: "f1"},
			{Name: "f2", Import: &Import{Namespace: "env", Name: "_abort"}},
		},
		Globals: []Global{{Name: "g0", Import: &Import{Namespace: "env", Name: "STACKTOP"}}},
		Memory:  &Memory{Import: &Import{Namespace: "env", Name: "memory"}},
	}

	ids := m.ImportedFuncs()
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("ImportedFuncs = %v", ids)
	}
	imps := m.Imports()
	if len(imps) != 4 || imps[3].String() != "env.memory" {
		t.Fatalf("Imports = %v", imps)
	}
}

func TestFuncParams(t *testing.T) {
	f := Func{
		Sig:    Signature{Params: []Type{I32, F64}},
		Locals: []Local{{Name: "a", Type: I32}, {Name: "b", Type: F64}, {Name: "tmp", Type: I64}},
	}
	params := f.Params()
	if len(params) != 2 || params[1] != 1 {
		t.Fatalf("Params = %v", params)
	}
	if Continue.String() != "continue" || Break.String() != "break" {
		t.Fatal("label kind keywords")
	}
}
