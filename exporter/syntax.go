package exporter

import "github.com/wippyai/wasm-exporter/wast"

// Syntax renders every piece of target-language text the emitter produces.
// The traversal in this package never builds target syntax on its own, so a
// new target only needs a new Syntax.
//
// Operator and memory methods report false when they have no native form for
// op; the emitter then falls back to Intrinsic and records the op as used.
type Syntax interface {
	// ReservedWords lists names no allocated identifier may take.
	ReservedWords() []string
	// Identifier fixes a candidate name for the identifier grammar.
	Identifier(name string) string

	ConstI32(v int32) string
	ConstI64(v int64) string
	ConstF32(v float32) string
	ConstF64(v float64) string

	GetLocal(name string) string
	GetGlobal(name string) string
	GetPhi(name string) string
	TeeLocal(name, value string) string

	Unop(op wast.Op, arg string) (string, bool)
	Binop(op wast.Op, l, r string) (string, bool)
	Terop(cond, whenTrue, whenFalse string) string
	// Condition renders a test or comparison in boolean context.
	Condition(op wast.Op, args ...string) (string, bool)
	// Truthy renders a non-boolean value in boolean context.
	Truthy(expr string) string
	Intrinsic(op wast.Op, args ...string) string

	Call(name string, args []string) string
	CallIndirect(sig wast.Signature, addr string, args []string) string
	ReadMemory(op wast.Op, addr string, offset, align uint32) (string, bool)
	WriteMemory(op wast.Op, addr string, offset, align uint32, value string) (string, bool)
	BlockExpr(t wast.Type) string

	SetLocal(name, value string) string
	SetGlobal(name, value string) string
	SetPhi(name, value string) string
	Return(value string) string
	ReturnVoid() string
	ExprStatement(expr string) string
	// ElidedStatement renders a side-effect-free expression that stands alone.
	ElidedStatement(expr string) string
	Unreachable() string
	Nop() string

	// Goto renders a branch with the keyword of kind.
	Goto(kind wast.LabelKind, label string) string
	BranchIf(cond, jump string) string
	// Scope returns the opening and closing lines around a nested body.
	Scope(header string) (open, close string)
	// BlockHeader is the header of a labeled block.
	BlockHeader(label string) string
	// LoopHeader is the header of an endless loop; label may be empty.
	LoopHeader(label string) string
	// LoopExit leaves the innermost loop; the dead form is kept as a marker.
	LoopExit(dead bool) string
	IfHeader(cond string) string
	ElseHeader() string
	SwitchHeader(subject string) string
	Case(index int, jump string) string
	DefaultCase(jump string) string

	// StatementPlaceholder and ExprPlaceholder mark nodes that could not be rendered.
	StatementPlaceholder(desc string) string
	ExprPlaceholder(desc string) string

	// PhiName names the synthetic variable carrying values of type t.
	PhiName(t wast.Type) string
}
