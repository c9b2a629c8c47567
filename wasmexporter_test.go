package wasmexporter

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/exporter/java"
	"github.com/wippyai/wasm-exporter/wasm"
)

func instr(code byte, imm any) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: imm}
}

// factorialModule imports env.___syscall146 and defines fac(n) with a
// block/loop pair.
func factorialModule() []byte {
	sigII := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	sigI := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	void := wasm.BlockImm{Type: wasm.BlockTypeVoid}

	code := wasm.EncodeInstructions([]wasm.Instruction{
		instr(wasm.OpI32Const, wasm.I32Imm{Value: 1}),
		instr(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: 1}),
		instr(wasm.OpBlock, void),
		instr(wasm.OpLoop, void),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: 0}),
		instr(wasm.OpI32Eqz, nil),
		instr(wasm.OpBrIf, wasm.BranchImm{LabelIdx: 1}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: 1}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: 0}),
		instr(wasm.OpI32Mul, nil),
		instr(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: 1}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: 0}),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: 1}),
		instr(wasm.OpI32Sub, nil),
		instr(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: 0}),
		instr(wasm.OpBr, wasm.BranchImm{LabelIdx: 0}),
		instr(wasm.OpEnd, nil),
		instr(wasm.OpEnd, nil),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: 1}),
		instr(wasm.OpEnd, nil),
	})

	m := &wasm.Module{
		Types: []wasm.FuncType{sigII, sigI},
		Imports: []wasm.Import{
			{Module: "env", Name: "___syscall146", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs:   []uint32{1},
		Exports: []wasm.Export{{Name: "fac", Kind: wasm.KindFunc, Idx: 1}},
		Code:    []wasm.FuncBody{{Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}}, Code: code}},
		Names: &wasm.NameSection{
			Module: "factorial",
			Funcs:  map[uint32]string{1: "fac"},
			Locals: map[uint32]map[uint32]string{1: {0: "n", 1: "acc"}},
		},
	}
	return m.Encode()
}

func TestExportJava(t *testing.T) {
	res, err := ExportJava(factorialModule(), java.Config{ClassName: "Factorial"})
	if err != nil {
		t.Fatalf("ExportJava: %v", err)
	}

	for _, want := range []string{
		"public class Factorial {",
		"public int fac(int n) {",
		"int acc = 0;",
		"acc = 1;",
		"while (true) {",
		"if (n == 0) break ",
		"acc = (acc * n);",
		"n = (n - 1);",
		"return acc;",
		"private int ___syscall146(int syscall, int address) {",
	} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("missing %q in\n%s", want, res.Source)
		}
	}
	if faults := res.Faults(); len(faults) != 0 {
		t.Errorf("faults: %v", faults)
	}
	if res.Unresolved != nil {
		t.Errorf("unresolved: %v", res.Unresolved)
	}
}

func TestExportJavaParallel(t *testing.T) {
	data := factorialModule()
	seq, err := ExportJava(data, java.Config{ClassName: "F"})
	if err != nil {
		t.Fatal(err)
	}
	par, err := ExportJavaContext(context.Background(), data, java.Config{ClassName: "F", Exporter: exporter.Config{Workers: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if seq.Source != par.Source {
		t.Fatal("parallel output differs")
	}
}

func TestExportJavaErrors(t *testing.T) {
	_, err := ExportJava([]byte("nope"), java.Config{ClassName: "X"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidData}) {
		t.Fatalf("err = %v", err)
	}
	if !stderrors.Is(err, wasm.ErrInvalidMagic) {
		t.Fatalf("cause lost: %v", err)
	}

	_, err = ExportJava(factorialModule(), java.Config{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAssemble, Kind: errors.KindInvalidInput}) {
		t.Fatalf("err = %v", err)
	}
}

func TestLower(t *testing.T) {
	m, err := Lower(factorialModule())
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if m.Name != "factorial" || len(m.Funcs) != 2 {
		t.Fatalf("module = %q with %d funcs", m.Name, len(m.Funcs))
	}
	if fn := m.Funcs[1]; fn.Name != "fac" || len(fn.Exports) != 1 || len(fn.Locals) != 2 {
		t.Fatalf("fac = %+v", fn)
	}
}
