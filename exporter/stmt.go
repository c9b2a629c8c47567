package exporter

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wast"
)

// Breaks is the set of labels some branch in a subtree exits through.
type Breaks map[wast.LabelID]struct{}

// Add records a branch to label. Only break-kind labels are recorded: a
// continue re-enters its loop and never reaches the code after it.
func (b Breaks) Add(label wast.LabelID, kind wast.LabelKind) {
	if kind == wast.Break {
		b[label] = struct{}{}
	}
}

// AddSure records label regardless of its kind.
func (b Breaks) AddSure(label wast.LabelID) {
	b[label] = struct{}{}
}

// Has reports whether label was recorded.
func (b Breaks) Has(label wast.LabelID) bool {
	if label == wast.NoLabel {
		return false
	}
	_, ok := b[label]
	return ok
}

// Merge adds every label of o.
func (b Breaks) Merge(o Breaks) {
	for l := range o {
		b[l] = struct{}{}
	}
}

// Result is the outcome of emitting one statement.
type Result struct {
	Text   *Buffer
	Breaks Breaks
	// Unreachable is set when control cannot fall off the end of Text.
	Unreachable bool
}

// Emitter renders one function's statements and expressions.
type Emitter struct {
	syn   Syntax
	ctx   *FuncContext
	debug bool
	// scopes holds the labels of the enclosing blocks and loops.
	scopes []wast.LabelID
}

// NewEmitter returns an emitter writing through syn with the names of ctx.
func NewEmitter(syn Syntax, ctx *FuncContext) *Emitter {
	return &Emitter{syn: syn, ctx: ctx}
}

// Context returns the function context the emitter names through.
func (e *Emitter) Context() *FuncContext {
	return e.ctx
}

// Stm emits s into out and reports its breaks and reachability.
func (e *Emitter) Stm(s wast.Stm, out *Buffer) Result {
	res := Result{Text: out, Breaks: make(Breaks)}

	switch s := s.(type) {
	case wast.Stms:
		for _, child := range s {
			r := e.Stm(child, out)
			res.Breaks.Merge(r.Breaks)
			if r.Unreachable {
				res.Unreachable = true
				break
			}
		}

	case wast.SetLocal:
		out.Line(e.syn.SetLocal(e.localName(s.Local), e.Expr(s.Value)))

	case wast.SetGlobal:
		out.Line(e.syn.SetGlobal(e.globalName(s.Global), e.Expr(s.Value)))

	case wast.Return:
		out.Line(e.syn.Return(e.Expr(s.Value)))
		res.Unreachable = true

	case wast.ReturnVoid:
		out.Line(e.syn.ReturnVoid())
		res.Unreachable = true

	case wast.Block:
		e.block(s, out, &res)

	case wast.Loop:
		e.loop(s, out, &res)

	case wast.If:
		open, close := e.syn.Scope(e.syn.IfHeader(e.Boolean(s.Cond)))
		out.Block(open, close, func() {
			res.Breaks.Merge(e.Stm(s.Then, out).Breaks)
		})

	case wast.IfElse:
		var then, els Result
		open, close := e.syn.Scope(e.syn.IfHeader(e.Boolean(s.Cond)))
		out.Block(open, close, func() {
			then = e.Stm(s.Then, out)
		})
		open, close = e.syn.Scope(e.syn.ElseHeader())
		out.Block(open, close, func() {
			els = e.Stm(s.Else, out)
		})
		res.Breaks.Merge(then.Breaks)
		res.Breaks.Merge(els.Breaks)
		res.Unreachable = then.Unreachable && els.Unreachable

	case wast.Br:
		out.Line(e.jump(s.Label, res.Breaks))
		res.Unreachable = true

	case wast.BrIf:
		out.Line(e.syn.BranchIf(e.Boolean(s.Cond), e.jump(s.Label, res.Breaks)))

	case wast.BrTable:
		open, close := e.syn.Scope(e.syn.SwitchHeader(e.Expr(s.Subject)))
		out.Block(open, close, func() {
			for i, l := range s.Labels {
				out.Line(e.syn.Case(i, e.jump(l, res.Breaks)))
			}
			out.Line(e.syn.DefaultCase(e.jump(s.Default, res.Breaks)))
		})
		res.Unreachable = true

	case wast.StmExpr:
		e.stmExpr(s.Expr, out)

	case wast.WriteMemory:
		addr, value := e.Expr(s.Address), e.Expr(s.Value)
		text, ok := e.syn.WriteMemory(s.Op, addr, s.Offset, s.Align, value)
		if !ok {
			e.ctx.UseIntrinsic(s.Op)
			text = e.syn.ExprStatement(e.syn.Intrinsic(s.Op, addr, uitoa(s.Offset), uitoa(s.Align), value))
		}
		out.Line(text)

	case wast.SetPhi:
		out.Line(e.syn.SetPhi(e.ctx.UsePhi(s.Type), e.Expr(s.Value)))

	case wast.Unreachable:
		out.Line(e.syn.Unreachable())
		res.Unreachable = true

	case wast.Nop:
		out.Line(e.syn.Nop())

	default:
		e.ctx.Fault(errors.KindMalformed, s, "unknown statement %s", describe(s))
		out.Line(e.syn.StatementPlaceholder(describe(s)))
	}

	return res
}

func (e *Emitter) block(s wast.Block, out *Buffer, res *Result) {
	var body Result
	if s.Label == wast.NoLabel {
		body = e.Stm(s.Body, out)
	} else {
		open, close := e.syn.Scope(e.syn.BlockHeader(e.labelName(s.Label)))
		e.scopes = append(e.scopes, s.Label)
		out.Block(open, close, func() {
			body = e.Stm(s.Body, out)
		})
		e.scopes = e.scopes[:len(e.scopes)-1]
	}
	res.Breaks.Merge(body.Breaks)
	// a branch to the block's label resumes right after the block
	res.Unreachable = body.Unreachable && !res.Breaks.Has(s.Label)

	if e.debug {
		Logger().Debug("block",
			zap.String("func", e.ctx.Func.Name),
			zap.String("label", e.labelName(s.Label)),
			zap.Bool("unreachable", res.Unreachable),
			zap.Int("breaks", len(res.Breaks)))
	}
}

func (e *Emitter) loop(s wast.Loop, out *Buffer, res *Result) {
	label := ""
	if s.Label != wast.NoLabel {
		label = e.labelName(s.Label)
		e.scopes = append(e.scopes, s.Label)
	}

	var body Result
	open, close := e.syn.Scope(e.syn.LoopHeader(label))
	out.Block(open, close, func() {
		body = e.Stm(s.Body, out)
		res.Breaks.Merge(body.Breaks)
		out.Line(e.syn.LoopExit(body.Unreachable))
		if !body.Unreachable && s.Label != wast.NoLabel {
			res.Breaks.AddSure(s.Label)
		}
	})

	if s.Label != wast.NoLabel {
		e.scopes = e.scopes[:len(e.scopes)-1]
		res.Unreachable = !res.Breaks.Has(s.Label)
	} else {
		res.Unreachable = body.Unreachable
	}

	if e.debug {
		Logger().Debug("loop",
			zap.String("func", e.ctx.Func.Name),
			zap.String("label", label),
			zap.Bool("unreachable", res.Unreachable),
			zap.Int("breaks", len(res.Breaks)))
	}
}

// jump renders a branch to label and records it in breaks. A label that no
// enclosing construct carries renders as a placeholder.
func (e *Emitter) jump(label wast.LabelID, breaks Breaks) string {
	def, ok := e.ctx.Label(label)
	if !ok || !e.inScope(label) {
		name := e.ctx.LabelName(label)
		e.ctx.Fault(errors.KindUnknownLabel, label, "branch to label %d (%q) outside its construct", label, name)
		return e.syn.StatementPlaceholder("goto unknown label " + itoa(int(label)))
	}
	breaks.Add(label, def.Kind)
	return e.syn.Goto(def.Kind, e.ctx.LabelName(label))
}

func (e *Emitter) inScope(label wast.LabelID) bool {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if e.scopes[i] == label {
			return true
		}
	}
	return false
}

func (e *Emitter) stmExpr(x wast.Expr, out *Buffer) {
	switch x := x.(type) {
	case wast.TeeLocal:
		out.Line(e.syn.SetLocal(e.localName(x.Local), e.Expr(x.Value)))
	case wast.Const, wast.GetLocal, wast.GetGlobal, wast.Phi, wast.Unop, wast.Binop, wast.Terop:
		out.Line(e.syn.ElidedStatement(e.Expr(x)))
	default:
		out.Line(e.syn.ExprStatement(e.Expr(x)))
	}
}

func (e *Emitter) localName(id wast.LocalID) string {
	name := e.ctx.LocalName(id)
	if name == "" {
		e.ctx.Fault(errors.KindNotFound, id, "local %d", id)
		return e.syn.ExprPlaceholder("local " + itoa(int(id)))
	}
	return name
}

func (e *Emitter) globalName(id wast.GlobalID) string {
	name := e.ctx.GlobalName(id)
	if name == "" {
		e.ctx.Fault(errors.KindNotFound, id, "global %d", id)
		return e.syn.ExprPlaceholder("global " + itoa(int(id)))
	}
	return name
}

func (e *Emitter) labelName(id wast.LabelID) string {
	name := e.ctx.LabelName(id)
	if name == "" {
		e.ctx.Fault(errors.KindUnknownLabel, id, "label %d", id)
		return "label" + itoa(int(id))
	}
	return name
}
