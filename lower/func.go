package lower

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wasm"
	"github.com/wippyai/wasm-exporter/wast"
)

// frameFunc marks the implicit frame of the function body.
const frameFunc byte = 0

type value struct {
	expr wast.Expr
	typ  wast.Type
}

type frame struct {
	label  wast.LabelID
	height int
	result wast.Type
	kind   byte // wasm.OpBlock, wasm.OpLoop, wasm.OpIf or frameFunc
}

// arity is the type carried by a branch to the frame.
func (fr *frame) arity() wast.Type {
	if fr.kind == wasm.OpLoop {
		return wast.Void
	}
	return fr.result
}

type funcLowerer struct {
	mod       *wasm.Module
	fn        *wast.Func
	stack     []value
	frames    []*frame
	stms      []wast.Stm
	idx       uint32
	firstTemp wast.LocalID
}

func lowerFunc(m *wasm.Module, out *wast.Module, idx int, body *wasm.FuncBody) error {
	fn := &out.Funcs[idx]
	f := &funcLowerer{mod: m, fn: fn, idx: uint32(idx)}

	for i, t := range fn.Sig.Params {
		fn.Locals = append(fn.Locals, wast.Local{Name: f.localName(uint32(i), "p"), Type: t})
	}
	for _, entry := range body.Locals {
		t, err := valueType(entry.ValType)
		if err != nil {
			return f.fail(errors.KindInvalidData, "local: %v", err)
		}
		for j := uint32(0); j < entry.Count; j++ {
			fn.Locals = append(fn.Locals, wast.Local{Name: f.localName(uint32(len(fn.Locals)), "l"), Type: t})
		}
	}
	f.firstTemp = wast.LocalID(len(fn.Locals))

	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return errors.New(errors.PhaseDecode, errors.KindMalformed).Func(fn.Name).Cause(err).Build()
	}
	tree, err := parseTree(instrs)
	if err != nil {
		return errors.New(errors.PhaseLower, errors.KindMalformed).Func(fn.Name).Cause(err).Build()
	}

	top := &frame{kind: frameFunc, result: fn.Sig.Result, label: wast.NoLabel}
	f.frames = []*frame{top}
	terminated, err := f.children(tree.children)
	if err != nil {
		return err
	}
	if !terminated && fn.Sig.Result != wast.Void {
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.emit(wast.Return{Value: v.expr})
	}

	stms := f.stms
	if top.label != wast.NoLabel {
		var tail wast.Stm = wast.ReturnVoid{}
		if fn.Sig.Result != wast.Void {
			tail = wast.Return{Value: wast.Phi{Type: fn.Sig.Result}}
		}
		stms = []wast.Stm{wast.Block{Body: seq(stms), Label: top.label}, tail}
	}
	fn.Body = seq(stms)

	Logger().Debug("lowered function",
		zap.String("func", fn.Name),
		zap.Int("locals", len(fn.Locals)),
		zap.Int("labels", len(fn.Labels)))
	return nil
}

func (f *funcLowerer) localName(local uint32, prefix string) string {
	if name, ok := f.mod.LocalName(f.idx, local); ok {
		return name
	}
	return fmt.Sprintf("%s%d", prefix, local)
}

func (f *funcLowerer) fail(kind errors.Kind, msg string, args ...any) error {
	return errors.New(errors.PhaseLower, kind).Func(f.fn.Name).Detail(msg, args...).Build()
}

// children lowers a sequence and reports whether control cannot fall off its end.
// Instructions after a terminator are dead and skipped.
func (f *funcLowerer) children(nodes []node) (bool, error) {
	for _, n := range nodes {
		terminated, err := f.node(n)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	return false, nil
}

func (f *funcLowerer) node(n node) (bool, error) {
	switch n := n.(type) {
	case *blockNode:
		return f.block(n)
	case *ifNode:
		return f.ifElse(n)
	case *instrNode:
		return f.instr(n.instr)
	default:
		return false, f.fail(errors.KindMalformed, "unexpected node %T", n)
	}
}

// body lowers the contents of a construct under fr. A body that falls off its
// end hands its result to the code after the construct through the phi slot.
func (f *funcLowerer) body(s *seqNode, fr *frame) (wast.Stm, bool, error) {
	saved := f.stms
	f.stms = nil
	f.frames = append(f.frames, fr)
	defer func() {
		f.frames = f.frames[:len(f.frames)-1]
	}()

	terminated, err := f.children(s.children)
	if err != nil {
		return nil, false, err
	}
	if !terminated && fr.result != wast.Void {
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		f.emit(wast.SetPhi{Value: v.expr, Type: fr.result})
	}
	f.stack = f.stack[:fr.height]

	out := seq(f.stms)
	f.stms = saved
	return out, terminated, nil
}

func (f *funcLowerer) blockType(imm wasm.BlockImm) (wast.Type, error) {
	if imm.Type >= 0 {
		ft := f.mod.TypeAt(uint32(imm.Type))
		if ft == nil {
			return wast.Void, f.fail(errors.KindInvalidData, "block type %d out of range", imm.Type)
		}
		if len(ft.Params) > 0 || len(ft.Results) > 1 {
			return wast.Void, errors.New(errors.PhaseLower, errors.KindUnsupported).
				Func(f.fn.Name).
				Detail("multi-value block type %d", imm.Type).
				Build()
		}
		if len(ft.Results) == 0 {
			return wast.Void, nil
		}
		return valueType(ft.Results[0])
	}
	vt, ok := imm.ResultType()
	if !ok {
		return wast.Void, nil
	}
	return valueType(vt)
}

func (f *funcLowerer) block(n *blockNode) (bool, error) {
	result, err := f.blockType(n.imm)
	if err != nil {
		return false, err
	}
	f.spill()
	fr := &frame{kind: n.opcode, result: result, height: len(f.stack), label: wast.NoLabel}
	body, terminated, err := f.body(n.body, fr)
	if err != nil {
		return false, err
	}

	if n.opcode == wasm.OpLoop {
		f.stms = append(f.stms, wast.Loop{Body: body, Label: fr.label})
	} else {
		if fr.label == wast.NoLabel {
			f.stms = append(f.stms, flatten(body)...)
		} else {
			f.stms = append(f.stms, wast.Block{Body: body, Label: fr.label})
		}
		terminated = terminated && fr.label == wast.NoLabel
	}

	if !terminated && result != wast.Void {
		f.push(wast.Phi{Type: result}, result)
	}
	return terminated, nil
}

func (f *funcLowerer) ifElse(n *ifNode) (bool, error) {
	result, err := f.blockType(n.imm)
	if err != nil {
		return false, err
	}
	cond, err := f.pop()
	if err != nil {
		return false, err
	}
	f.spill()

	fr := &frame{kind: wasm.OpIf, result: result, height: len(f.stack), label: wast.NoLabel}
	then, thenTerm, err := f.body(n.then, fr)
	if err != nil {
		return false, err
	}

	var stm wast.Stm
	terminated := false
	if n.hasElse {
		els, elseTerm, err := f.body(n.els, fr)
		if err != nil {
			return false, err
		}
		stm = wast.IfElse{Cond: cond.expr, Then: then, Else: els}
		terminated = thenTerm && elseTerm
	} else {
		stm = wast.If{Cond: cond.expr, Then: then}
	}

	if fr.label != wast.NoLabel {
		stm = wast.Block{Body: stm, Label: fr.label}
		terminated = false
	}
	f.stms = append(f.stms, stm)

	if !terminated && result != wast.Void {
		f.push(wast.Phi{Type: result}, result)
	}
	return terminated, nil
}

// target resolves a relative branch depth, naming the frame's label on first use.
func (f *funcLowerer) target(depth uint32) (*frame, error) {
	if int(depth) >= len(f.frames) {
		return nil, f.fail(errors.KindInvalidData, "branch depth %d exceeds %d enclosing frames", depth, len(f.frames))
	}
	fr := f.frames[len(f.frames)-1-int(depth)]
	if fr.kind != frameFunc {
		f.label(fr)
	}
	return fr, nil
}

func (f *funcLowerer) label(fr *frame) wast.LabelID {
	if fr.label != wast.NoLabel {
		return fr.label
	}
	id := wast.LabelID(len(f.fn.Labels))
	lbl := wast.Label{Name: fmt.Sprintf("block%d", id), Kind: wast.Break}
	if fr.kind == wasm.OpLoop {
		lbl = wast.Label{Name: fmt.Sprintf("loop%d", id), Kind: wast.Continue}
	}
	f.fn.Labels = append(f.fn.Labels, lbl)
	fr.label = id
	return id
}

func (f *funcLowerer) br(depth uint32) error {
	fr, err := f.target(depth)
	if err != nil {
		return err
	}
	if fr.kind == frameFunc {
		return f.ret()
	}
	if t := fr.arity(); t != wast.Void {
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.emit(wast.SetPhi{Value: v.expr, Type: t})
	}
	f.emit(wast.Br{Label: fr.label})
	return nil
}

func (f *funcLowerer) ret() error {
	if f.fn.Sig.Result == wast.Void {
		f.emit(wast.ReturnVoid{})
		return nil
	}
	v, err := f.pop()
	if err != nil {
		return err
	}
	f.emit(wast.Return{Value: v.expr})
	return nil
}

func (f *funcLowerer) brIf(depth uint32) error {
	cond, err := f.pop()
	if err != nil {
		return err
	}
	fr, err := f.target(depth)
	if err != nil {
		return err
	}
	t := fr.arity()
	if t == wast.Void {
		if fr.kind == frameFunc {
			f.emit(wast.If{Cond: cond.expr, Then: wast.ReturnVoid{}})
		} else {
			f.emit(wast.BrIf{Cond: cond.expr, Label: fr.label})
		}
		return nil
	}

	// the branch value stays on the stack when the branch is not taken
	v, err := f.pop()
	if err != nil {
		return err
	}
	f.spill()
	v = f.stabilize(v)
	f.stack = append(f.stack, v)

	var then wast.Stm
	if fr.kind == frameFunc {
		then = wast.Return{Value: v.expr}
	} else {
		then = wast.Stms{wast.SetPhi{Value: v.expr, Type: t}, wast.Br{Label: fr.label}}
	}
	f.stms = append(f.stms, wast.If{Cond: cond.expr, Then: then})
	return nil
}

func (f *funcLowerer) brTable(imm wasm.BrTableImm) error {
	index, err := f.pop()
	if err != nil {
		return err
	}
	labels := make([]wast.LabelID, len(imm.Labels))
	for i, depth := range imm.Labels {
		if labels[i], err = f.tableTarget(depth); err != nil {
			return err
		}
	}
	def, err := f.tableTarget(imm.Default)
	if err != nil {
		return err
	}

	fr, _ := f.target(imm.Default)
	if t := fr.arity(); t != wast.Void {
		// the index may read the phi slot the branch value is about to fill
		f.spill()
		index = f.stabilize(index)
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.emit(wast.SetPhi{Value: v.expr, Type: t})
	}
	f.emit(wast.BrTable{Subject: index.expr, Labels: labels, Default: def})
	return nil
}

// tableTarget is target for br_table, where the function frame needs a
// label of its own so the table can exit the body.
func (f *funcLowerer) tableTarget(depth uint32) (wast.LabelID, error) {
	fr, err := f.target(depth)
	if err != nil {
		return wast.NoLabel, err
	}
	return f.label(fr), nil
}

func (f *funcLowerer) instr(in wasm.Instruction) (bool, error) {
	switch in.Opcode {
	case wasm.OpNop:
		return false, nil

	case wasm.OpUnreachable:
		f.emit(wast.Unreachable{})
		return true, nil

	case wasm.OpBr:
		return true, f.br(in.Imm.(wasm.BranchImm).LabelIdx)

	case wasm.OpBrIf:
		return false, f.brIf(in.Imm.(wasm.BranchImm).LabelIdx)

	case wasm.OpBrTable:
		return true, f.brTable(in.Imm.(wasm.BrTableImm))

	case wasm.OpReturn:
		return true, f.ret()

	case wasm.OpCall:
		return false, f.call(in.Imm.(wasm.CallImm).FuncIdx)

	case wasm.OpCallIndirect:
		return false, f.callIndirect(in.Imm.(wasm.CallIndirectImm))

	case wasm.OpDrop:
		return false, f.drop()

	case wasm.OpSelect:
		return false, f.selectOp()

	case wasm.OpLocalGet:
		id, err := f.local(in.Imm.(wasm.LocalImm).LocalIdx)
		if err != nil {
			return false, err
		}
		f.push(wast.GetLocal{Local: id}, f.fn.Locals[id].Type)
		return false, nil

	case wasm.OpLocalSet:
		id, err := f.local(in.Imm.(wasm.LocalImm).LocalIdx)
		if err != nil {
			return false, err
		}
		v, err := f.pop()
		if err != nil {
			return false, err
		}
		f.emit(wast.SetLocal{Value: v.expr, Local: id})
		return false, nil

	case wasm.OpLocalTee:
		id, err := f.local(in.Imm.(wasm.LocalImm).LocalIdx)
		if err != nil {
			return false, err
		}
		v, err := f.pop()
		if err != nil {
			return false, err
		}
		f.push(wast.TeeLocal{Value: v.expr, Local: id}, v.typ)
		return false, nil

	case wasm.OpGlobalGet:
		id, err := f.global(in.Imm.(wasm.GlobalImm).GlobalIdx)
		if err != nil {
			return false, err
		}
		f.push(wast.GetGlobal{Global: id}, f.globalType(id))
		return false, nil

	case wasm.OpGlobalSet:
		id, err := f.global(in.Imm.(wasm.GlobalImm).GlobalIdx)
		if err != nil {
			return false, err
		}
		v, err := f.pop()
		if err != nil {
			return false, err
		}
		f.emit(wast.SetGlobal{Value: v.expr, Global: id})
		return false, nil

	case wasm.OpI32Const, wasm.OpI64Const, wasm.OpF32Const, wasm.OpF64Const:
		c, _ := constant(in)
		f.push(c, c.Type)
		return false, nil

	case wasm.OpPrefixMisc:
		return false, f.misc(in.Imm.(wasm.MiscImm))
	}

	op := wast.Op(in.Opcode)
	switch op.Class() {
	case wast.ClassLoad:
		imm := in.Imm.(wasm.MemoryImm)
		addr, err := f.pop()
		if err != nil {
			return false, err
		}
		f.push(wast.ReadMemory{Address: addr.expr, Op: op, Offset: imm.Offset, Align: imm.Align}, op.Result())
		return false, nil

	case wast.ClassStore:
		imm := in.Imm.(wasm.MemoryImm)
		v, err := f.pop()
		if err != nil {
			return false, err
		}
		addr, err := f.pop()
		if err != nil {
			return false, err
		}
		f.emit(wast.WriteMemory{Address: addr.expr, Value: v.expr, Op: op, Offset: imm.Offset, Align: imm.Align})
		return false, nil

	case wast.ClassMemory:
		args, err := f.popN(operandCount(op))
		if err != nil {
			return false, err
		}
		f.push(wast.Intrinsic{Args: exprs(args), Op: op}, op.Result())
		return false, nil

	case wast.ClassTest, wast.ClassUnary, wast.ClassConvert:
		arg, err := f.pop()
		if err != nil {
			return false, err
		}
		f.push(wast.Unop{Arg: arg.expr, Op: op}, op.Result())
		return false, nil

	case wast.ClassCompare, wast.ClassBinary:
		r, err := f.pop()
		if err != nil {
			return false, err
		}
		l, err := f.pop()
		if err != nil {
			return false, err
		}
		f.push(wast.Binop{L: l.expr, R: r.expr, Op: op}, op.Result())
		return false, nil
	}

	return false, errors.New(errors.PhaseLower, errors.KindUnmappedOp).
		Func(f.fn.Name).
		Value(in.Opcode).
		Detail("opcode 0x%02x", in.Opcode).
		Build()
}

func (f *funcLowerer) misc(imm wasm.MiscImm) error {
	op := wast.MiscPrefix | wast.Op(imm.SubOpcode)
	switch op {
	case wast.MemoryCopy, wast.MemoryFill:
		args, err := f.popN(3)
		if err != nil {
			return err
		}
		f.emit(wast.StmExpr{Expr: wast.Intrinsic{Args: exprs(args), Op: op}})
		return nil
	}
	if op.Class() == wast.ClassConvert {
		arg, err := f.pop()
		if err != nil {
			return err
		}
		f.push(wast.Unop{Arg: arg.expr, Op: op}, op.Result())
		return nil
	}
	return errors.New(errors.PhaseLower, errors.KindUnsupported).
		Func(f.fn.Name).
		Value(imm.SubOpcode).
		Detail("misc instruction 0xfc %d", imm.SubOpcode).
		Build()
}

func operandCount(op wast.Op) int {
	switch op {
	case wast.MemorySize:
		return 0
	case wast.MemoryGrow:
		return 1
	default:
		return 3
	}
}

func (f *funcLowerer) call(funcIdx uint32) error {
	ft := f.mod.GetFuncType(funcIdx)
	if ft == nil {
		return f.fail(errors.KindInvalidData, "call to function %d out of range", funcIdx)
	}
	args, err := f.popN(len(ft.Params))
	if err != nil {
		return err
	}
	c := wast.Call{Args: exprs(args), Func: wast.FuncID(funcIdx)}
	if len(ft.Results) == 0 {
		f.emit(wast.StmExpr{Expr: c})
		return nil
	}
	t, err := valueType(ft.Results[0])
	if err != nil {
		return err
	}
	f.push(c, t)
	return nil
}

func (f *funcLowerer) callIndirect(imm wasm.CallIndirectImm) error {
	sig, err := signature(f.mod, imm.TypeIdx)
	if err != nil {
		return errors.New(errors.PhaseLower, errors.KindInvalidData).Func(f.fn.Name).Cause(err).Build()
	}
	addr, err := f.pop()
	if err != nil {
		return err
	}
	args, err := f.popN(len(sig.Params))
	if err != nil {
		return err
	}
	// the table index is evaluated last but rendered first
	if !f.stable(addr.expr) {
		f.spill()
		for i := range args {
			args[i] = f.stabilize(args[i])
		}
	}
	c := wast.CallIndirect{Address: addr.expr, Args: exprs(args), Sig: sig}
	if sig.Result == wast.Void {
		f.emit(wast.StmExpr{Expr: c})
		return nil
	}
	f.push(c, sig.Result)
	return nil
}

func (f *funcLowerer) drop() error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	switch v.expr.(type) {
	case wast.Call, wast.CallIndirect, wast.TeeLocal, wast.Intrinsic:
		f.emit(wast.StmExpr{Expr: v.expr})
	default:
		if effects(v.expr) {
			f.spill()
			f.stabilize(v)
		}
	}
	return nil
}

func (f *funcLowerer) selectOp() error {
	cond, err := f.pop()
	if err != nil {
		return err
	}
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	// both arms are evaluated before the condition
	if !f.stable(a.expr) || !f.stable(b.expr) {
		f.spill()
		a = f.stabilize(a)
		b = f.stabilize(b)
	}
	f.push(wast.Terop{Cond: cond.expr, True: a.expr, False: b.expr}, a.typ)
	return nil
}

func (f *funcLowerer) local(idx uint32) (wast.LocalID, error) {
	if idx >= uint32(f.firstTemp) {
		return 0, errors.OutOfBounds(errors.PhaseLower, []string{f.fn.Name, "local"}, int(idx), int(f.firstTemp))
	}
	return wast.LocalID(idx), nil
}

func (f *funcLowerer) global(idx uint32) (wast.GlobalID, error) {
	n := f.mod.NumImportedGlobals() + len(f.mod.Globals)
	if int(idx) >= n {
		return 0, errors.OutOfBounds(errors.PhaseLower, []string{f.fn.Name, "global"}, int(idx), n)
	}
	return wast.GlobalID(idx), nil
}

func (f *funcLowerer) globalType(id wast.GlobalID) wast.Type {
	imported := 0
	for _, imp := range f.mod.Imports {
		if imp.Desc.Kind != wasm.KindGlobal {
			continue
		}
		if imported == int(id) {
			t, _ := valueType(imp.Desc.Global.ValType)
			return t
		}
		imported++
	}
	t, _ := valueType(f.mod.Globals[int(id)-imported].Type.ValType)
	return t
}

func (f *funcLowerer) push(e wast.Expr, t wast.Type) {
	f.stack = append(f.stack, value{expr: e, typ: t})
}

func (f *funcLowerer) pop() (value, error) {
	height := f.frames[len(f.frames)-1].height
	if len(f.stack) <= height {
		return value{}, f.fail(errors.KindStackUnderflow, "pop on empty stack")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// popN pops n values and returns them in push order.
func (f *funcLowerer) popN(n int) ([]value, error) {
	out := make([]value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// emit appends a statement after moving every pending stack value into a
// temporary, so the values are computed before the statement runs.
func (f *funcLowerer) emit(s wast.Stm) {
	f.spill()
	f.stms = append(f.stms, s)
}

func (f *funcLowerer) spill() {
	for i := range f.stack {
		f.stack[i] = f.stabilize(f.stack[i])
	}
}

// stabilize materializes v into a fresh temporary unless it is already stable.
func (f *funcLowerer) stabilize(v value) value {
	if f.stable(v.expr) {
		return v
	}
	id := wast.LocalID(len(f.fn.Locals))
	f.fn.Locals = append(f.fn.Locals, wast.Local{Name: fmt.Sprintf("t%d", int(id-f.firstTemp)), Type: v.typ})
	f.stms = append(f.stms, wast.SetLocal{Value: v.expr, Local: id})
	return value{expr: wast.GetLocal{Local: id}, typ: v.typ}
}

// stable reports whether e reads the same value wherever it is evaluated.
// Temporaries are assigned once.
func (f *funcLowerer) stable(e wast.Expr) bool {
	switch e := e.(type) {
	case wast.Const:
		return true
	case wast.GetLocal:
		return e.Local >= f.firstTemp
	}
	return false
}

// effects reports whether evaluating e can be observed. A trap counts.
func effects(e wast.Expr) bool {
	switch e := e.(type) {
	case wast.Const, wast.GetLocal, wast.GetGlobal, wast.Phi:
		return false
	case wast.Unop:
		return e.Op.Traps() || effects(e.Arg)
	case wast.Binop:
		return e.Op.Traps() || effects(e.L) || effects(e.R)
	case wast.Terop:
		return effects(e.Cond) || effects(e.True) || effects(e.False)
	}
	return true
}

func exprs(vs []value) []wast.Expr {
	out := make([]wast.Expr, len(vs))
	for i, v := range vs {
		out[i] = v.expr
	}
	return out
}

func seq(stms []wast.Stm) wast.Stm {
	switch len(stms) {
	case 0:
		return wast.Nop{}
	case 1:
		return stms[0]
	}
	return wast.Stms(stms)
}

func flatten(s wast.Stm) []wast.Stm {
	switch s := s.(type) {
	case wast.Stms:
		return s
	case wast.Nop:
		return nil
	}
	return []wast.Stm{s}
}
