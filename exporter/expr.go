package exporter

import (
	"strconv"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wast"
)

// Expr renders x in value context.
func (e *Emitter) Expr(x wast.Expr) string {
	switch x := x.(type) {
	case wast.Const:
		return e.constant(x)

	case wast.GetLocal:
		return e.syn.GetLocal(e.localName(x.Local))

	case wast.GetGlobal:
		return e.syn.GetGlobal(e.globalName(x.Global))

	case wast.TeeLocal:
		return e.syn.TeeLocal(e.localName(x.Local), e.Expr(x.Value))

	case wast.Unop:
		return e.unop(x.Op, e.Expr(x.Arg))

	case wast.Binop:
		return e.binop(x.Op, e.Expr(x.L), e.Expr(x.R))

	case wast.Terop:
		return e.syn.Terop(e.Boolean(x.Cond), e.Expr(x.True), e.Expr(x.False))

	case wast.Call:
		name := e.ctx.Module.FuncName(x.Func)
		if name == "" {
			e.ctx.Fault(errors.KindNotFound, x.Func, "call target %d", x.Func)
			return e.syn.ExprPlaceholder("call " + itoa(int(x.Func)))
		}
		return e.syn.Call(name, e.exprs(x.Args))

	case wast.CallIndirect:
		e.ctx.UseSignature(x.Sig)
		return e.syn.CallIndirect(x.Sig, e.Expr(x.Address), e.exprs(x.Args))

	case wast.ReadMemory:
		addr := e.Expr(x.Address)
		if text, ok := e.syn.ReadMemory(x.Op, addr, x.Offset, x.Align); ok {
			return text
		}
		return e.intrinsic(x.Op, addr, uitoa(x.Offset), uitoa(x.Align))

	case wast.Phi:
		return e.syn.GetPhi(e.ctx.UsePhi(x.Type))

	case wast.Intrinsic:
		return e.intrinsic(x.Op, e.exprs(x.Args)...)

	case wast.BlockExpr:
		e.ctx.Fault(errors.KindUnsupported, x.Type, "block expression of type %s", x.Type)
		return e.syn.BlockExpr(x.Type)

	default:
		e.ctx.Fault(errors.KindMalformed, x, "unknown expression %s", describe(x))
		return e.syn.ExprPlaceholder(describe(x))
	}
}

// Boolean renders x in condition context. Tests and comparisons use the
// target's own operators; anything else is compared against zero.
func (e *Emitter) Boolean(x wast.Expr) string {
	switch x := x.(type) {
	case wast.Unop:
		if x.Op.Class() == wast.ClassTest {
			arg := e.Expr(x.Arg)
			if text, ok := e.syn.Condition(x.Op, arg); ok {
				return text
			}
			return e.syn.Truthy(e.unop(x.Op, arg))
		}
	case wast.Binop:
		if x.Op.Class() == wast.ClassCompare {
			l, r := e.Expr(x.L), e.Expr(x.R)
			if text, ok := e.syn.Condition(x.Op, l, r); ok {
				return text
			}
			return e.syn.Truthy(e.binop(x.Op, l, r))
		}
	}
	return e.syn.Truthy(e.Expr(x))
}

func (e *Emitter) unop(op wast.Op, arg string) string {
	if text, ok := e.syn.Unop(op, arg); ok {
		return text
	}
	return e.intrinsic(op, arg)
}

func (e *Emitter) binop(op wast.Op, l, r string) string {
	if text, ok := e.syn.Binop(op, l, r); ok {
		return text
	}
	return e.intrinsic(op, l, r)
}

func (e *Emitter) constant(c wast.Const) string {
	switch c.Type {
	case wast.I32:
		return e.syn.ConstI32(c.I32())
	case wast.I64:
		return e.syn.ConstI64(c.I64())
	case wast.F32:
		return e.syn.ConstF32(c.F32())
	case wast.F64:
		return e.syn.ConstF64(c.F64())
	}
	e.ctx.Fault(errors.KindMalformed, c, "constant of type %s", c.Type)
	return e.syn.ExprPlaceholder(c.String())
}

func (e *Emitter) intrinsic(op wast.Op, args ...string) string {
	e.ctx.UseIntrinsic(op)
	return e.syn.Intrinsic(op, args...)
}

func (e *Emitter) exprs(xs []wast.Expr) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = e.Expr(x)
	}
	return out
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
