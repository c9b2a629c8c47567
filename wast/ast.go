package wast

import (
	"fmt"
	"math"
)

// Stm is a statement node. The set of implementations is closed.
type Stm interface {
	stmNode()
}

// Expr is an expression node. The set of implementations is closed.
type Expr interface {
	exprNode()
}

// Statements

// Stms is a sequence of statements.
type Stms []Stm

// SetLocal assigns a local.
type SetLocal struct {
	Value Expr
	Local LocalID
}

// SetGlobal assigns a global.
type SetGlobal struct {
	Value  Expr
	Global GlobalID
}

// Return returns a value from the function.
type Return struct {
	Value Expr
}

// ReturnVoid returns from a function without a result.
type ReturnVoid struct{}

// Block is a forward-exit construct. Branches to Label continue after it.
type Block struct {
	Body  Stm
	Label LabelID
}

// Loop re-executes Body when a branch targets Label with Continue kind.
type Loop struct {
	Body  Stm
	Label LabelID
}

// If runs Then when Cond is non-zero.
type If struct {
	Cond Expr
	Then Stm
}

// IfElse runs Then or Else depending on Cond.
type IfElse struct {
	Cond Expr
	Then Stm
	Else Stm
}

// Br branches unconditionally.
type Br struct {
	Label LabelID
}

// BrIf branches when Cond is non-zero.
type BrIf struct {
	Cond  Expr
	Label LabelID
}

// BrTable branches to Labels[Subject], or Default when out of range.
type BrTable struct {
	Subject Expr
	Labels  []LabelID
	Default LabelID
}

// StmExpr evaluates an expression for its side effects.
type StmExpr struct {
	Expr Expr
}

// WriteMemory stores Value at Address+Offset.
type WriteMemory struct {
	Address Expr
	Value   Expr
	Op      Op
	Offset  uint32
	Align   uint32
}

// SetPhi writes the value a construct leaves behind for the code after it.
type SetPhi struct {
	Value Expr
	Type  Type
}

// Unreachable traps.
type Unreachable struct{}

// Nop does nothing.
type Nop struct{}

func (Stms) stmNode()        {}
func (SetLocal) stmNode()    {}
func (SetGlobal) stmNode()   {}
func (Return) stmNode()      {}
func (ReturnVoid) stmNode()  {}
func (Block) stmNode()       {}
func (Loop) stmNode()        {}
func (If) stmNode()          {}
func (IfElse) stmNode()      {}
func (Br) stmNode()          {}
func (BrIf) stmNode()        {}
func (BrTable) stmNode()     {}
func (StmExpr) stmNode()     {}
func (WriteMemory) stmNode() {}
func (SetPhi) stmNode()      {}
func (Unreachable) stmNode() {}
func (Nop) stmNode()         {}

// Expressions

// Const is a typed literal. Bits holds the raw value: sign-extended for
// integers, IEEE 754 bits for floats.
type Const struct {
	Bits uint64
	Type Type
}

// GetLocal reads a local.
type GetLocal struct {
	Local LocalID
}

// GetGlobal reads a global.
type GetGlobal struct {
	Global GlobalID
}

// TeeLocal assigns a local and yields the assigned value.
type TeeLocal struct {
	Value Expr
	Local LocalID
}

// Unop applies a one-operand operator.
type Unop struct {
	Arg Expr
	Op  Op
}

// Binop applies a two-operand operator.
type Binop struct {
	L  Expr
	R  Expr
	Op Op
}

// Terop is a select: True when Cond is non-zero, otherwise False.
type Terop struct {
	Cond  Expr
	True  Expr
	False Expr
}

// Call invokes a function directly.
type Call struct {
	Args []Expr
	Func FuncID
}

// CallIndirect invokes the table entry at Address with signature Sig.
type CallIndirect struct {
	Address Expr
	Args    []Expr
	Sig     Signature
}

// ReadMemory loads from Address+Offset.
type ReadMemory struct {
	Address Expr
	Op      Op
	Offset  uint32
	Align   uint32
}

// Phi reads the value the preceding construct left behind.
type Phi struct {
	Type Type
}

// BlockExpr is a block that yields a value. Emitters render it as a placeholder.
type BlockExpr struct {
	Body Stm
	Type Type
}

// Intrinsic is an operator without a dedicated node, such as memory.grow.
type Intrinsic struct {
	Args []Expr
	Op   Op
}

func (Const) exprNode()        {}
func (GetLocal) exprNode()     {}
func (GetGlobal) exprNode()    {}
func (TeeLocal) exprNode()     {}
func (Unop) exprNode()         {}
func (Binop) exprNode()        {}
func (Terop) exprNode()        {}
func (Call) exprNode()         {}
func (CallIndirect) exprNode() {}
func (ReadMemory) exprNode()   {}
func (Phi) exprNode()          {}
func (BlockExpr) exprNode()    {}
func (Intrinsic) exprNode()    {}

// I32Const returns an i32 literal.
func I32Const(v int32) Const { return Const{Type: I32, Bits: uint64(int64(v))} }

// I64Const returns an i64 literal.
func I64Const(v int64) Const { return Const{Type: I64, Bits: uint64(v)} }

// F32Const returns an f32 literal.
func F32Const(v float32) Const { return Const{Type: F32, Bits: uint64(math.Float32bits(v))} }

// F64Const returns an f64 literal.
func F64Const(v float64) Const { return Const{Type: F64, Bits: math.Float64bits(v)} }

// I32 returns the literal as int32.
func (c Const) I32() int32 { return int32(c.Bits) }

// I64 returns the literal as int64.
func (c Const) I64() int64 { return int64(c.Bits) }

// F32 returns the literal as float32.
func (c Const) F32() float32 { return math.Float32frombits(uint32(c.Bits)) }

// F64 returns the literal as float64.
func (c Const) F64() float64 { return math.Float64frombits(c.Bits) }

func (c Const) String() string {
	switch c.Type {
	case I32:
		return fmt.Sprintf("i32.const %d", c.I32())
	case I64:
		return fmt.Sprintf("i64.const %d", c.I64())
	case F32:
		return fmt.Sprintf("f32.const %g", c.F32())
	case F64:
		return fmt.Sprintf("f64.const %g", c.F64())
	default:
		return "const ?"
	}
}
