package java

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/wast"
)

var (
	syscallSig = wast.Signature{Params: []wast.Type{wast.I32, wast.I32}, Result: wast.I32}
	addSig     = wast.Signature{Params: []wast.Type{wast.I32, wast.I32}, Result: wast.I32}
)

func imported(ns, name string, sig wast.Signature) wast.Func {
	return wast.Func{Import: &wast.Import{Namespace: ns, Name: name}, Name: name, Sig: sig}
}

func demoModule() *wast.Module {
	zero := wast.FuncID(6)
	return &wast.Module{
		Name: "demo",
		Funcs: []wast.Func{
			imported("env", "___syscall6", syscallSig),
			imported("env", "___syscall54", syscallSig),
			imported("env", "___syscall20", syscallSig),
			imported("env", "foo", wast.Signature{}),
			{
				Name:    "add",
				Exports: []string{"add"},
				Sig:     addSig,
				Locals:  []wast.Local{{Name: "a", Type: wast.I32}, {Name: "b", Type: wast.I32}},
				Body: wast.Return{Value: wast.Binop{
					Op: wast.I32Add,
					L:  wast.GetLocal{Local: 0},
					R:  wast.GetLocal{Local: 1},
				}},
			},
			{
				Name:   "conv",
				Sig:    wast.Signature{Params: []wast.Type{wast.F32}, Result: wast.I32},
				Locals: []wast.Local{{Name: "x", Type: wast.F32}},
				Body:   wast.Return{Value: wast.Unop{Op: wast.I32TruncF32U, Arg: wast.GetLocal{Local: 0}}},
			},
			{
				Name: "init",
				Body: wast.SetGlobal{Global: 1, Value: wast.I32Const(1)},
			},
			{
				Name:    "callit",
				Exports: []string{"callit"},
				Sig:     wast.Signature{Result: wast.I32},
				Locals:  []wast.Local{{Name: "t", Type: wast.I64}},
				Body: wast.Stms{
					wast.Block{Label: 0, Body: wast.Stms{
						wast.SetPhi{Type: wast.I32, Value: wast.I32Const(3)},
						wast.Br{Label: 0},
					}},
					wast.Return{Value: wast.CallIndirect{
						Address: wast.I32Const(0),
						Args:    []wast.Expr{wast.Phi{Type: wast.I32}, wast.I32Const(2)},
						Sig:     addSig,
					}},
				},
				Labels: []wast.Label{{Name: "block0", Kind: wast.Break}},
			},
		},
		Globals: []wast.Global{
			{Import: &wast.Import{Namespace: "global", Name: "NaN"}, Name: "NaN", Type: wast.F64},
			{Name: "g", Type: wast.I32, Mutable: true, Init: wast.I32Const(8), Exports: []string{"g"}},
		},
		Memory: &wast.Memory{Pages: 1},
		Table: &wast.Table{Size: 2, Segments: []wast.Segment{
			{Offset: wast.I32Const(0), Funcs: []wast.FuncID{4, 5}},
		}},
		Data:  []wast.DataSegment{{Offset: wast.I32Const(16), Data: []byte("hi")}},
		Start: &zero,
	}
}

func TestDump(t *testing.T) {
	res, err := Dump(context.Background(), demoModule(), Config{ClassName: "Demo", PackageName: "demo.pkg"})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	for _, want := range []string{
		"package demo.pkg;",
		"public class Demo {",
		"private java.nio.ByteBuffer memory = java.nio.ByteBuffer.allocate(1 * PAGE_SIZE).order(java.nio.ByteOrder.LITTLE_ENDIAN);",
		"private int[] table = new int[2];",
		"private double NaN;",
		"private int g;",
		"public Demo() {",
		"this.NaN = Double.NaN;",
		"this.g = 8;",
		"System.arraycopy(new int[] {4, 5}, 0, this.table, 0, 2);",
		`this.putBytes(16, "aGk=");`,
		"this.init();",
		"public int add(int a, int b) {",
		"return (a + b);",
		"private int conv(float x) {",
		"return Op_i32_trunc_f32_u(x);",
		"private static int Op_i32_trunc_f32_u(float x) {",
		"private void init() {",
		"this.g = 1;",
		"public int callit() {",
		"long t = 0L;",
		"int phi_i32 = 0;",
		"block0: {",
		"phi_i32 = 3;",
		"break block0;",
		"return this.invoke_piiri(0, phi_i32, 2);",
		"private int invoke_piiri(int addr, int a0, int a1) {",
		"case 4: return this.add(a0, a1);",
		"private int ___syscall6(int syscall, int address) {",
		"private int ___syscall54(int syscall, int address) {",
		"// getpid",
		`return TODO_i32("unimplemented syscall 20");`,
		`throw new UnsupportedOperationException("unresolved import env.foo");`,
	} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("missing %q in\n%s", want, res.Source)
		}
	}

	if strings.Contains(res.Source, "case 5:") {
		t.Error("conv has a different signature and must not be dispatched")
	}
	if n := strings.Count(res.Source, "unimplemented syscall"); n != 1 {
		t.Errorf("%d syscall stubs, want 1", n)
	}
	if faults := res.Faults(); len(faults) != 0 {
		t.Errorf("unexpected faults: %v", faults)
	}

	var unresolved *errors.UnresolvedImportsError
	if !stderrors.As(res.Unresolved, &unresolved) {
		t.Fatalf("Unresolved = %v", res.Unresolved)
	}
	if len(unresolved.Imports) != 1 || unresolved.Imports[0].Function != "foo" {
		t.Errorf("unresolved imports = %+v", unresolved.Imports)
	}
}

func TestDumpWorkersDeterministic(t *testing.T) {
	one, err := Dump(context.Background(), demoModule(), Config{ClassName: "Demo"})
	if err != nil {
		t.Fatal(err)
	}
	many, err := Dump(context.Background(), demoModule(), Config{ClassName: "Demo", Exporter: exporter.Config{Workers: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if one.Source != many.Source {
		t.Fatal("output depends on worker count")
	}
}

func TestDumpRequiresClassName(t *testing.T) {
	for _, name := range []string{"", "not a class"} {
		_, err := Dump(context.Background(), demoModule(), Config{ClassName: name})
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAssemble, Kind: errors.KindInvalidInput}) {
			t.Errorf("class %q: err = %v", name, err)
		}
	}
}

func TestMemoryLimits(t *testing.T) {
	u32 := func(v uint32) *uint32 { return &v }
	tests := []struct {
		name string
		mem  *wast.Memory
		want string
	}{
		{"no memory", nil, "MAX_PAGES = 32767;"},
		{"no maximum", &wast.Memory{Pages: 1}, "MAX_PAGES = 32767;"},
		{"declared maximum", &wast.Memory{Pages: 1, Max: u32(16)}, "MAX_PAGES = 16;"},
		{"maximum past int range", &wast.Memory{Pages: 1, Max: u32(65536)}, "MAX_PAGES = 32767;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := demoModule()
			m.Memory = tt.mem
			res, err := Dump(context.Background(), m, Config{ClassName: "Demo"})
			if err != nil {
				t.Fatalf("Dump: %v", err)
			}
			if !strings.Contains(res.Source, tt.want) {
				t.Fatalf("missing %q", tt.want)
			}
		})
	}

	m := demoModule()
	m.Memory = &wast.Memory{Pages: MaxPages + 1}
	_, err := Dump(context.Background(), m, Config{ClassName: "Demo"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAssemble, Kind: errors.KindInvalidInput}) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryGrowChecksInLong(t *testing.T) {
	body := Helper(wast.MemoryGrow)
	if !strings.Contains(body, "(long) old + delta > MAX_PAGES") {
		t.Fatalf("grow bound is not widened:\n%s", body)
	}
}

func TestDumpFailedStub(t *testing.T) {
	handlers := exporter.Handlers{
		{Namespace: "env", Name: "___syscall6"}: func(string, *wast.Func, *exporter.Buffer) error {
			return stderrors.New("no fd table")
		},
		{Namespace: "env", Name: "___syscall54"}: func(string, *wast.Func, *exporter.Buffer) error {
			panic("boom")
		},
	}
	res, err := Dump(context.Background(), demoModule(), Config{ClassName: "Demo", Handlers: handlers})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	faults := res.Faults()
	if len(faults) != 2 {
		t.Fatalf("faults = %v", faults)
	}
	for _, f := range faults {
		if !stderrors.Is(f, &errors.Error{Phase: errors.PhaseStub, Kind: errors.KindStubFailed}) {
			t.Errorf("fault %v is not a stub failure", f)
		}
	}
	for _, want := range []string{
		`throw new UnsupportedOperationException("stub failed for env.___syscall6");`,
		`throw new UnsupportedOperationException("stub failed for env.___syscall54");`,
	} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestMissingSyscallSignature(t *testing.T) {
	m := &wast.Module{Funcs: []wast.Func{imported("env", "___syscall3", wast.Signature{Result: wast.I32})}}
	res, err := Dump(context.Background(), m, Config{ClassName: "Bad"})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(res.Stubs) != 1 || !res.Stubs[0].Failed() || res.Stubs[0].Syscall != 3 {
		t.Fatalf("stubs = %+v", res.Stubs)
	}
	if !strings.Contains(res.Source, "private int ___syscall3() {") {
		t.Errorf("missing placeholder method in\n%s", res.Source)
	}
}

func TestAbortHandler(t *testing.T) {
	m := &wast.Module{Funcs: []wast.Func{
		imported("env", "abort", wast.Signature{Params: []wast.Type{wast.I32}}),
	}}
	res, err := Dump(context.Background(), m, Config{ClassName: "Abort"})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if res.Unresolved != nil {
		t.Fatalf("abort should be handled: %v", res.Unresolved)
	}
	if !strings.Contains(res.Source, "private void abort(int a0) {") {
		t.Errorf("missing abort in\n%s", res.Source)
	}
}

func TestSyscallName(t *testing.T) {
	if got := SyscallName(146); got != "writev" {
		t.Errorf("146 = %q", got)
	}
	if got := SyscallName(9999); got != "" {
		t.Errorf("9999 = %q", got)
	}
}
