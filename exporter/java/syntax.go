package java

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/wast"
)

// Syntax renders Java source. It implements exporter.Syntax; the emitter
// supplies already rendered operands and Syntax only decides the Java form.
type Syntax struct{}

var _ exporter.Syntax = Syntax{}

var keywords = []string{
	"abstract", "assert", "boolean", "break", "byte", "case", "catch", "char",
	"class", "const", "continue", "default", "do", "double", "else", "enum",
	"extends", "final", "finally", "float", "for", "goto", "if", "implements",
	"import", "instanceof", "int", "interface", "long", "native", "new",
	"package", "private", "protected", "public", "return", "short", "static",
	"strictfp", "super", "switch", "synchronized", "this", "throw", "throws",
	"transient", "try", "void", "volatile", "while", "var", "record", "yield",
	"true", "false", "null", "_",
}

// names the generated class defines for itself, plus Object's methods
var classNames = []string{
	"java", "index", "memory", "table", "PAGE_SIZE", "MAX_PAGES",
	"TODO", "TODO_i32", "TODO_i64", "TODO_f32", "TODO_f64",
	"getByte", "getShort", "getInt", "getLong", "getFloat", "getDouble",
	"putByte", "putShort", "putInt", "putLong", "putFloat", "putDouble",
	"putBytes", "initMemory", "initTable",
	"equals", "hashCode", "toString", "getClass", "notify", "notifyAll",
	"wait", "clone", "finalize", discarded,
}

// discarded names the scoped local that holds an expression evaluated only
// for its traps.
const discarded = "discarded"

// ReservedWords lists Java keywords and the members every generated class declares.
func (Syntax) ReservedWords() []string {
	out := make([]string, 0, len(keywords)+len(classNames))
	out = append(out, keywords...)
	return append(out, classNames...)
}

// Identifier fixes name into a Java identifier outside the helper namespaces.
func (Syntax) Identifier(name string) string {
	name = exporter.Identifier(name)
	if strings.HasPrefix(name, "Op_") || strings.HasPrefix(name, "invoke_") {
		name = "_" + name
	}
	return name
}

// ConstI32 renders an int literal.
func (Syntax) ConstI32(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

// ConstI64 renders a long literal.
func (Syntax) ConstI64(v int64) string {
	return strconv.FormatInt(v, 10) + "L"
}

// ConstF32 renders a float literal. NaN keeps its payload through intBitsToFloat.
func (Syntax) ConstF32(v float32) string {
	switch {
	case math.IsNaN(float64(v)):
		return fmt.Sprintf("Float.intBitsToFloat(0x%08x)", math.Float32bits(v))
	case math.IsInf(float64(v), 1):
		return "Float.POSITIVE_INFINITY"
	case math.IsInf(float64(v), -1):
		return "Float.NEGATIVE_INFINITY"
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 32) + "f"
}

// ConstF64 renders a double literal. NaN keeps its payload through longBitsToDouble.
func (Syntax) ConstF64(v float64) string {
	switch {
	case math.IsNaN(v):
		return fmt.Sprintf("Double.longBitsToDouble(0x%016xL)", math.Float64bits(v))
	case math.IsInf(v, 1):
		return "Double.POSITIVE_INFINITY"
	case math.IsInf(v, -1):
		return "Double.NEGATIVE_INFINITY"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Locals and phi slots are method locals; globals are fields.
func (Syntax) GetLocal(name string) string  { return name }
func (Syntax) GetGlobal(name string) string { return "this." + name }
func (Syntax) GetPhi(name string) string    { return name }

// TeeLocal renders an assignment used as a value.
func (Syntax) TeeLocal(name, value string) string {
	return "(" + name + " = " + value + ")"
}

// Unop renders op natively when Java has a direct form for it.
func (Syntax) Unop(op wast.Op, arg string) (string, bool) {
	form, ok := unops[op]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(form, "$", arg), true
}

// Binop renders op natively. Comparisons yield 0 or 1.
func (Syntax) Binop(op wast.Op, l, r string) (string, bool) {
	if op.Class() == wast.ClassCompare {
		cond, ok := compare(op, l, r)
		if !ok {
			return "", false
		}
		return "((" + cond + ") ? 1 : 0)", true
	}
	form, ok := binops[op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(form, l, r), true
}

// Terop renders select as a conditional expression.
func (Syntax) Terop(cond, whenTrue, whenFalse string) string {
	return "(((" + cond + ")) ? (" + whenTrue + ") : (" + whenFalse + "))"
}

// Condition renders a test or comparison as a boolean expression.
func (Syntax) Condition(op wast.Op, args ...string) (string, bool) {
	switch {
	case (op == wast.I32Eqz || op == wast.I64Eqz) && len(args) == 1:
		return args[0] + " == 0", true
	case op.Class() == wast.ClassCompare && len(args) == 2:
		return compare(op, args[0], args[1])
	}
	return "", false
}

// Truthy turns an int into a boolean.
func (Syntax) Truthy(expr string) string {
	return expr + " != 0"
}

// Intrinsic calls the Op_ helper the class declares for op.
func (Syntax) Intrinsic(op wast.Op, args ...string) string {
	return op.Intrinsic() + "(" + strings.Join(args, ", ") + ")"
}

// Call invokes a method of the generated class.
func (Syntax) Call(name string, args []string) string {
	return "this." + name + "(" + strings.Join(args, ", ") + ")"
}

// CallIndirect dispatches through the invoke_ helper for sig.
func (Syntax) CallIndirect(sig wast.Signature, addr string, args []string) string {
	return "this." + invokeName(sig) + "(" + strings.Join(append([]string{addr}, args...), ", ") + ")"
}

// ReadMemory renders a load through the class memory accessors.
func (Syntax) ReadMemory(op wast.Op, addr string, offset, align uint32) (string, bool) {
	form, ok := loads[op]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(form, "$", address(addr, offset)), true
}

// WriteMemory renders a store through the class memory accessors.
func (Syntax) WriteMemory(op wast.Op, addr string, offset, align uint32, value string) (string, bool) {
	form, ok := stores[op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(form, address(addr, offset), value), true
}

// BlockExpr renders a trapping placeholder of type t.
func (Syntax) BlockExpr(t wast.Type) string {
	return todo(t) + "(\"BLOCK_EXPR not implemented\")"
}

// Plain statements.
func (Syntax) SetLocal(name, value string) string  { return name + " = " + value + ";" }
func (Syntax) SetGlobal(name, value string) string { return "this." + name + " = " + value + ";" }
func (Syntax) SetPhi(name, value string) string    { return name + " = " + value + ";" }
func (Syntax) Return(value string) string          { return "return " + value + ";" }
func (Syntax) ReturnVoid() string                  { return "return;" }
// ExprStatement keeps a parenthesized expression evaluated by binding it to a
// scoped local, since Java accepts only calls and assignments as statements.
func (Syntax) ExprStatement(expr string) string {
	if strings.HasPrefix(expr, "(") {
		return "{ var " + discarded + " = " + expr + "; }"
	}
	return expr + ";"
}

// ElidedStatement comments out an expression with no observable effect.
func (Syntax) ElidedStatement(expr string) string {
	return "// " + expr + "; // Not a statement"
}

// Unreachable throws, which javac also treats as an abrupt completion.
func (Syntax) Unreachable() string {
	return "throw new RuntimeException(\"unreachable\");"
}

func (Syntax) Nop() string { return "// nop" }

// Goto renders a labeled break or continue.
func (Syntax) Goto(kind wast.LabelKind, label string) string {
	return kind.String() + " " + label + ";"
}

func (Syntax) BranchIf(cond, jump string) string {
	return "if (" + cond + ") " + jump
}

// Scope opens a brace block after header, or a bare block when header is empty.
func (Syntax) Scope(header string) (string, string) {
	if header == "" {
		return "{", "}"
	}
	return header + " {", "}"
}

func (Syntax) BlockHeader(label string) string { return label + ":" }

// LoopHeader renders an infinite loop; exits are explicit breaks.
func (Syntax) LoopHeader(label string) string {
	if label == "" {
		return "while (true)"
	}
	return label + ": while (true)"
}

// LoopExit ends a loop body that falls through. A dead exit is commented
// out so javac does not reject it as unreachable.
func (Syntax) LoopExit(dead bool) string {
	if dead {
		return "//break;"
	}
	return "break;"
}

func (Syntax) IfHeader(cond string) string        { return "if (" + cond + ")" }
func (Syntax) ElseHeader() string                 { return "else" }
func (Syntax) SwitchHeader(subject string) string { return "switch (" + subject + ")" }

// Case renders one br_table arm.
func (Syntax) Case(index int, jump string) string {
	return "case " + strconv.Itoa(index) + ": " + jump
}

func (Syntax) DefaultCase(jump string) string { return "default: " + jump }

// Placeholders mark constructs that could not be rendered. They do not compile.
func (Syntax) StatementPlaceholder(desc string) string { return "??? " + desc }
func (Syntax) ExprPlaceholder(desc string) string      { return "???(" + desc + ")" }

// PhiName names the per-type slot that carries block results.
func (Syntax) PhiName(t wast.Type) string { return "phi_" + t.String() }

// Type returns the Java type of t.
func Type(t wast.Type) string {
	switch t {
	case wast.I32:
		return "int"
	case wast.I64:
		return "long"
	case wast.F32:
		return "float"
	case wast.F64:
		return "double"
	default:
		return "void"
	}
}

// Zero returns the Java zero literal of t.
func Zero(t wast.Type) string {
	switch t {
	case wast.I64:
		return "0L"
	case wast.F32:
		return "0f"
	case wast.F64:
		return "0.0"
	default:
		return "0"
	}
}

func todo(t wast.Type) string {
	if t == wast.Void {
		return "TODO"
	}
	return "TODO_" + t.String()
}

func invokeName(sig wast.Signature) string {
	return "invoke_" + sig.Key()
}

func address(addr string, offset uint32) string {
	if offset == 0 {
		return addr
	}
	return addr + " + " + strconv.FormatUint(uint64(offset), 10)
}

// javaString quotes s as a Java string literal.
func javaString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r > 0x7e:
			if r > 0xffff {
				r1, r2 := surrogates(r)
				fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}
