package exporter_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/exporter/java"
	"github.com/wippyai/wasm-exporter/wast"
)

func local(id wast.LocalID) wast.GetLocal { return wast.GetLocal{Local: id} }

func i32(v int32) wast.Const { return wast.I32Const(v) }

// emit renders body as the only function of a module and returns its raw lines.
func emit(t *testing.T, fn wast.Func) ([]string, *exporter.Function) {
	t.Helper()
	m := &wast.Module{Funcs: []wast.Func{fn}}
	x := exporter.New(m, java.Syntax{}, exporter.Config{})
	out, err := x.EmitFunc(0)
	if err != nil {
		t.Fatalf("EmitFunc: %v", err)
	}
	return out.Body.Lines(), out
}

func i32Func(body wast.Stm, labels ...wast.Label) wast.Func {
	return wast.Func{
		Name:   "f",
		Sig:    wast.Signature{Result: wast.I32},
		Locals: []wast.Local{{Name: "x", Type: wast.I32}},
		Labels: labels,
		Body:   body,
	}
}

func TestEmitStatements(t *testing.T) {
	tests := []struct {
		name        string
		fn          wast.Func
		want        []string
		unreachable bool
	}{
		{
			name: "conditional return",
			fn: i32Func(wast.Stms{
				wast.SetLocal{Local: 0, Value: i32(5)},
				wast.If{
					Cond: wast.Binop{Op: wast.I32GtS, L: local(0), R: i32(0)},
					Then: wast.Return{Value: local(0)},
				},
				wast.Return{Value: i32(0)},
			}),
			want: []string{
				"x = 5;",
				"if (x > 0) {",
				"return x;",
				"}",
				"return 0;",
			},
			unreachable: true,
		},
		{
			name: "dead code after return",
			fn: i32Func(wast.Stms{
				wast.Return{Value: i32(1)},
				wast.SetLocal{Local: 0, Value: i32(2)},
				wast.Return{Value: local(0)},
			}),
			want:        []string{"return 1;"},
			unreachable: true,
		},
		{
			name: "loop that always returns",
			fn: i32Func(wast.Loop{Label: 0, Body: wast.Return{Value: i32(1)}},
				wast.Label{Name: "loop0", Kind: wast.Continue}),
			want: []string{
				"loop0: while (true) {",
				"return 1;",
				"//break;",
				"}",
			},
			unreachable: true,
		},
		{
			name: "loop that falls through",
			fn: i32Func(wast.Stms{
				wast.Loop{Label: 0, Body: wast.Stms{
					wast.SetLocal{Local: 0, Value: wast.Binop{Op: wast.I32Add, L: local(0), R: i32(1)}},
					wast.BrIf{Cond: wast.Binop{Op: wast.I32LtS, L: local(0), R: i32(10)}, Label: 0},
				}},
				wast.Return{Value: local(0)},
			}, wast.Label{Name: "loop0", Kind: wast.Continue}),
			want: []string{
				"loop0: while (true) {",
				"x = (x + 1);",
				"if (x < 10) continue loop0;",
				"break;",
				"}",
				"return x;",
			},
			unreachable: true,
		},
		{
			name: "unlabeled loop",
			fn: i32Func(wast.Stms{
				wast.Loop{Label: wast.NoLabel, Body: wast.Unreachable{}},
				wast.Return{Value: i32(0)},
			}),
			want: []string{
				"while (true) {",
				`throw new RuntimeException("unreachable");`,
				"//break;",
				"}",
			},
			unreachable: true,
		},
		{
			name: "block forward exit",
			fn: i32Func(wast.Stms{
				wast.Block{Label: 0, Body: wast.Stms{
					wast.Br{Label: 0},
					wast.SetLocal{Local: 0, Value: i32(9)},
				}},
				wast.Return{Value: local(0)},
			}, wast.Label{Name: "block0", Kind: wast.Break}),
			want: []string{
				"block0: {",
				"break block0;",
				"}",
				"return x;",
			},
			unreachable: true,
		},
		{
			name: "if else both return",
			fn: i32Func(wast.Stms{
				wast.IfElse{
					Cond: local(0),
					Then: wast.Return{Value: i32(1)},
					Else: wast.Return{Value: i32(2)},
				},
				wast.Return{Value: i32(3)},
			}),
			want: []string{
				"if (x != 0) {",
				"return 1;",
				"}",
				"else {",
				"return 2;",
				"}",
			},
			unreachable: true,
		},
		{
			name: "br_table",
			fn: i32Func(wast.Stms{
				wast.Block{Label: 1, Body: wast.Stms{
					wast.Block{Label: 0, Body: wast.BrTable{Subject: local(0), Labels: []wast.LabelID{0}, Default: 1}},
					wast.Return{Value: i32(1)},
				}},
				wast.Return{Value: i32(2)},
			}, wast.Label{Name: "block0", Kind: wast.Break}, wast.Label{Name: "block1", Kind: wast.Break}),
			want: []string{
				"block1: {",
				"block0: {",
				"switch (x) {",
				"case 0: break block0;",
				"default: break block1;",
				"}",
				"}",
				"return 1;",
				"}",
				"return 2;",
			},
			unreachable: true,
		},
		{
			name: "expression statements",
			fn: wast.Func{
				Name:   "f",
				Locals: []wast.Local{{Name: "x", Type: wast.I32}},
				Body: wast.Stms{
					wast.StmExpr{Expr: wast.Binop{Op: wast.I32Add, L: local(0), R: i32(1)}},
					wast.StmExpr{Expr: wast.TeeLocal{Local: 0, Value: i32(4)}},
					wast.StmExpr{Expr: wast.Call{Func: 0}},
					wast.SetPhi{Type: wast.I64, Value: wast.I64Const(1)},
					wast.SetLocal{Local: 0, Value: wast.Binop{Op: wast.I32Eq, L: local(0), R: i32(4)}},
					wast.WriteMemory{Op: wast.I32Store8, Address: local(0), Offset: 2, Value: i32(255)},
					wast.StmExpr{Expr: wast.ReadMemory{Op: wast.I32Load8U, Address: local(0)}},
					wast.StmExpr{Expr: wast.ReadMemory{Op: wast.I32Load, Address: local(0), Offset: 4}},
					wast.Nop{},
				},
			},
			want: []string{
				"// (x + 1); // Not a statement",
				"x = 4;",
				"this.f();",
				"phi_i64 = 1L;",
				"x = ((x == 4) ? 1 : 0);",
				"this.putByte(x + 2, (byte) (255));",
				"{ var discarded = (this.getByte(x) & 0xFF); }",
				"this.getInt(x + 4);",
				"// nop",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fn := emit(t, tt.fn)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
			if fn.Unreachable != tt.unreachable {
				t.Errorf("unreachable = %v, want %v", fn.Unreachable, tt.unreachable)
			}
			if faults := fn.Context.Faults(); len(faults) != 0 {
				t.Errorf("unexpected faults: %v", faults)
			}
		})
	}
}

func TestEmitReportsBreaks(t *testing.T) {
	fn := i32Func(wast.Nop{},
		wast.Label{Name: "loop0", Kind: wast.Continue},
		wast.Label{Name: "block1", Kind: wast.Break})
	m := &wast.Module{Funcs: []wast.Func{fn}}
	ctx := exporter.NewFuncContext(exporter.NewModuleContext(m, java.Syntax{}), &m.Funcs[0], java.Syntax{})
	em := exporter.NewEmitter(java.Syntax{}, ctx)

	res := em.Stm(wast.Block{Label: 1, Body: wast.Stms{
		wast.Loop{Label: 0, Body: wast.Stms{
			wast.BrIf{Cond: local(0), Label: 1},
			wast.Br{Label: 0},
		}},
	}}, &exporter.Buffer{})

	if res.Unreachable {
		t.Error("block exited by br_if must be reachable")
	}
	if !res.Breaks.Has(1) {
		t.Error("break to block1 not recorded")
	}
	if res.Breaks.Has(0) {
		t.Error("continue must not count as an exit")
	}
}

func TestEmitFaults(t *testing.T) {
	tests := []struct {
		name string
		body wast.Stm
		line string
		kind errors.Kind
	}{
		{
			name: "branch outside construct",
			body: wast.Br{Label: 0},
			line: "??? goto unknown label 0",
			kind: errors.KindUnknownLabel,
		},
		{
			name: "missing call target",
			body: wast.Return{Value: wast.Call{Func: 42}},
			line: "return ???(call 42);",
			kind: errors.KindNotFound,
		},
		{
			name: "block expression",
			body: wast.Return{Value: wast.BlockExpr{Type: wast.I32, Body: wast.Nop{}}},
			line: `return TODO_i32("BLOCK_EXPR not implemented");`,
			kind: errors.KindUnsupported,
		},
		{
			name: "nil statement",
			body: wast.Stms{nil},
			line: "??? nil",
			kind: errors.KindMalformed,
		},
		{
			name: "unknown local",
			body: wast.SetLocal{Local: 7, Value: i32(0)},
			line: "???(local 7) = 0;",
			kind: errors.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fn := emit(t, i32Func(tt.body, wast.Label{Name: "block0", Kind: wast.Break}))
			if len(got) == 0 || got[0] != tt.line {
				t.Fatalf("got %q, want first line %q", got, tt.line)
			}
			faults := fn.Context.Faults()
			if len(faults) != 1 {
				t.Fatalf("faults = %v", faults)
			}
			if !stderrors.Is(faults[0], &errors.Error{Phase: errors.PhaseEmit, Kind: tt.kind}) {
				t.Errorf("fault %v, want kind %s", faults[0], tt.kind)
			}
		})
	}
}

func TestIntrinsicTracking(t *testing.T) {
	body := wast.Stms{
		wast.StmExpr{Expr: wast.Intrinsic{Op: wast.MemoryFill, Args: []wast.Expr{i32(0), i32(0), i32(8)}}},
		wast.Return{Value: wast.Unop{Op: wast.I32TruncF64U, Arg: wast.F64Const(1.5)}},
	}
	got, fn := emit(t, i32Func(body))
	want := []string{"Op_memory_fill(0, 0, 8);", "return Op_i32_trunc_f64_u(1.5);"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
	ops := fn.Context.Intrinsics()
	if !reflect.DeepEqual(ops, []wast.Op{wast.I32TruncF64U, wast.MemoryFill}) {
		t.Fatalf("intrinsics = %v", ops)
	}
}

func TestNamingStable(t *testing.T) {
	m := &wast.Module{
		Funcs: []wast.Func{{
			Name:   "f",
			Locals: []wast.Local{{Name: "v", Type: wast.I32}, {Name: "v", Type: wast.I32}, {Name: "index", Type: wast.I32}},
			Labels: []wast.Label{{Name: "v"}},
		}},
		Globals: []wast.Global{{Name: "g", Type: wast.I32}, {Name: "g", Type: wast.I32}},
	}
	mc := exporter.NewModuleContext(m, java.Syntax{})
	ctx := exporter.NewFuncContext(mc, &m.Funcs[0], java.Syntax{})

	first := []string{ctx.LocalName(0), ctx.LocalName(1), ctx.LocalName(2), ctx.LabelName(0), mc.GlobalName(0), mc.GlobalName(1)}
	want := []string{"v", "v_", "index_", "v__", "g", "g_"}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("names = %q, want %q", first, want)
	}
	again := []string{ctx.LocalName(0), ctx.LocalName(1), ctx.LocalName(2), ctx.LabelName(0), mc.GlobalName(0), mc.GlobalName(1)}
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("names changed: %q then %q", first, again)
	}
	if mc.FuncName(5) != "" || ctx.LocalName(-1) != "" {
		t.Fatal("out of range handles must yield empty names")
	}
}

func TestEmitFuncsDeterministic(t *testing.T) {
	m := &wast.Module{}
	for i := 0; i < 40; i++ {
		m.Funcs = append(m.Funcs, wast.Func{
			Name:   "f",
			Sig:    wast.Signature{Result: wast.I32},
			Locals: []wast.Local{},
			Body:   wast.Return{Value: wast.Call{Func: wast.FuncID((i + 1) % 40)}},
		})
	}

	render := func(workers int) string {
		x := exporter.New(m, java.Syntax{}, exporter.Config{Workers: workers})
		out, err := x.EmitFuncs(context.Background())
		if err != nil {
			t.Fatalf("EmitFuncs: %v", err)
		}
		var b strings.Builder
		for _, f := range out.Funcs {
			fmt.Fprintf(&b, "%s:%s\n", f.Name, f.Body.String())
		}
		return b.String()
	}

	seq := render(1)
	if !strings.HasPrefix(seq, "f:return this.f_();\n") {
		t.Fatalf("unexpected first function: %q", seq[:40])
	}
	for _, w := range []int{2, 8} {
		if got := render(w); got != seq {
			t.Fatalf("workers=%d output differs", w)
		}
	}
}

func TestEmitFuncsCancelled(t *testing.T) {
	m := &wast.Module{Funcs: []wast.Func{i32Func(wast.Return{Value: i32(0)})}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// with a cancelled context the single job may or may not be sent first
	_, err := exporter.New(m, java.Syntax{}, exporter.Config{}).EmitFuncs(ctx)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestEmitFuncRejectsImports(t *testing.T) {
	m := &wast.Module{Funcs: []wast.Func{{Name: "h", Import: &wast.Import{Namespace: "env", Name: "h"}}}}
	x := exporter.New(m, java.Syntax{}, exporter.Config{})
	if _, err := x.EmitFunc(0); err == nil {
		t.Fatal("imported function emitted")
	}
	if _, err := x.EmitFunc(3); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEmit, Kind: errors.KindOutOfBounds}) {
		t.Fatalf("err = %v", err)
	}
}
