package java

import (
	"fmt"

	"github.com/wippyai/wasm-exporter/wast"
)

// unops maps operators to Java forms; $ stands for the operand.
var unops = map[wast.Op]string{
	wast.I32Eqz: "((($) == 0) ? 1 : 0)",
	wast.I64Eqz: "((($) == 0L) ? 1 : 0)",

	wast.I32Clz:    "Integer.numberOfLeadingZeros($)",
	wast.I32Ctz:    "Integer.numberOfTrailingZeros($)",
	wast.I32Popcnt: "Integer.bitCount($)",
	wast.I64Clz:    "((long) Long.numberOfLeadingZeros($))",
	wast.I64Ctz:    "((long) Long.numberOfTrailingZeros($))",
	wast.I64Popcnt: "((long) Long.bitCount($))",

	wast.F32Abs:     "Math.abs($)",
	wast.F32Neg:     "-($)",
	wast.F32Ceil:    "((float) Math.ceil($))",
	wast.F32Floor:   "((float) Math.floor($))",
	wast.F32Nearest: "((float) Math.rint($))",
	wast.F32Sqrt:    "((float) Math.sqrt($))",
	wast.F64Abs:     "Math.abs($)",
	wast.F64Neg:     "-($)",
	wast.F64Ceil:    "Math.ceil($)",
	wast.F64Floor:   "Math.floor($)",
	wast.F64Nearest: "Math.rint($)",
	wast.F64Sqrt:    "Math.sqrt($)",

	wast.I32WrapI64:     "((int) ($))",
	wast.I64ExtendI32S:  "((long) ($))",
	wast.I64ExtendI32U:  "(((long) ($)) & 0xFFFFFFFFL)",
	wast.F32ConvertI32S: "((float) ($))",
	wast.F32ConvertI64S: "((float) ($))",
	wast.F32DemoteF64:   "((float) ($))",
	wast.F64ConvertI32S: "((double) ($))",
	wast.F64ConvertI32U: "((double) (((long) ($)) & 0xFFFFFFFFL))",
	wast.F64ConvertI64S: "((double) ($))",
	wast.F64PromoteF32:  "((double) ($))",

	wast.I32ReinterpretF32: "Float.floatToRawIntBits($)",
	wast.I64ReinterpretF64: "Double.doubleToRawLongBits($)",
	wast.F32ReinterpretI32: "Float.intBitsToFloat($)",
	wast.F64ReinterpretI64: "Double.longBitsToDouble($)",

	wast.I32Extend8S:  "((int) (byte) ($))",
	wast.I32Extend16S: "((int) (short) ($))",
	wast.I64Extend8S:  "((long) (byte) ($))",
	wast.I64Extend16S: "((long) (short) ($))",
	wast.I64Extend32S: "((long) (int) ($))",

	// Java's narrowing conversions already saturate and map NaN to zero.
	wast.I32TruncSatF32S: "((int) ($))",
	wast.I32TruncSatF64S: "((int) ($))",
	wast.I64TruncSatF32S: "((long) ($))",
	wast.I64TruncSatF64S: "((long) ($))",
}

// binops maps operators to Java forms taking (left, right).
var binops = map[wast.Op]string{
	wast.I32Add:  "(%s + %s)",
	wast.I32Sub:  "(%s - %s)",
	wast.I32Mul:  "(%s * %s)",
	wast.I32DivS: "(%s / %s)",
	wast.I32DivU: "Integer.divideUnsigned(%s, %s)",
	wast.I32RemS: "(%s %% %s)",
	wast.I32RemU: "Integer.remainderUnsigned(%s, %s)",
	wast.I32And:  "(%s & %s)",
	wast.I32Or:   "(%s | %s)",
	wast.I32Xor:  "(%s ^ %s)",
	wast.I32Shl:  "(%s << %s)",
	wast.I32ShrS: "(%s >> %s)",
	wast.I32ShrU: "(%s >>> %s)",
	wast.I32Rotl: "Integer.rotateLeft(%s, %s)",
	wast.I32Rotr: "Integer.rotateRight(%s, %s)",

	wast.I64Add:  "(%s + %s)",
	wast.I64Sub:  "(%s - %s)",
	wast.I64Mul:  "(%s * %s)",
	wast.I64DivS: "(%s / %s)",
	wast.I64DivU: "Long.divideUnsigned(%s, %s)",
	wast.I64RemS: "(%s %% %s)",
	wast.I64RemU: "Long.remainderUnsigned(%s, %s)",
	wast.I64And:  "(%s & %s)",
	wast.I64Or:   "(%s | %s)",
	wast.I64Xor:  "(%s ^ %s)",
	wast.I64Shl:  "(%s << %s)",
	wast.I64ShrS: "(%s >> %s)",
	wast.I64ShrU: "(%s >>> %s)",
	wast.I64Rotl: "Long.rotateLeft(%s, (int) (%s))",
	wast.I64Rotr: "Long.rotateRight(%s, (int) (%s))",

	wast.F32Add:      "(%s + %s)",
	wast.F32Sub:      "(%s - %s)",
	wast.F32Mul:      "(%s * %s)",
	wast.F32Div:      "(%s / %s)",
	wast.F32Min:      "Math.min(%s, %s)",
	wast.F32Max:      "Math.max(%s, %s)",
	wast.F32Copysign: "Math.copySign(%s, %s)",
	wast.F64Add:      "(%s + %s)",
	wast.F64Sub:      "(%s - %s)",
	wast.F64Mul:      "(%s * %s)",
	wast.F64Div:      "(%s / %s)",
	wast.F64Min:      "Math.min(%s, %s)",
	wast.F64Max:      "Math.max(%s, %s)",
	wast.F64Copysign: "Math.copySign(%s, %s)",
}

var relations = map[wast.Op]string{
	wast.I32Eq: "==", wast.I32Ne: "!=",
	wast.I32LtS: "<", wast.I32LtU: "<", wast.I32GtS: ">", wast.I32GtU: ">",
	wast.I32LeS: "<=", wast.I32LeU: "<=", wast.I32GeS: ">=", wast.I32GeU: ">=",
	wast.I64Eq: "==", wast.I64Ne: "!=",
	wast.I64LtS: "<", wast.I64LtU: "<", wast.I64GtS: ">", wast.I64GtU: ">",
	wast.I64LeS: "<=", wast.I64LeU: "<=", wast.I64GeS: ">=", wast.I64GeU: ">=",
	wast.F32Eq: "==", wast.F32Ne: "!=", wast.F32Lt: "<", wast.F32Gt: ">", wast.F32Le: "<=", wast.F32Ge: ">=",
	wast.F64Eq: "==", wast.F64Ne: "!=", wast.F64Lt: "<", wast.F64Gt: ">", wast.F64Le: "<=", wast.F64Ge: ">=",
}

func unsigned(op wast.Op) bool {
	switch op {
	case wast.I32LtU, wast.I32GtU, wast.I32LeU, wast.I32GeU,
		wast.I64LtU, wast.I64GtU, wast.I64LeU, wast.I64GeU:
		return true
	}
	return false
}

// compare renders a comparison as a Java boolean expression.
func compare(op wast.Op, l, r string) (string, bool) {
	rel, ok := relations[op]
	if !ok {
		return "", false
	}
	if unsigned(op) {
		box := "Integer"
		if op.Operand() == wast.I64 {
			box = "Long"
		}
		return fmt.Sprintf("%s.compareUnsigned(%s, %s) %s 0", box, l, r, rel), true
	}
	return l + " " + rel + " " + r, true
}

var loads = map[wast.Op]string{
	wast.I32Load:    "this.getInt($)",
	wast.I64Load:    "this.getLong($)",
	wast.F32Load:    "this.getFloat($)",
	wast.F64Load:    "this.getDouble($)",
	wast.I32Load8S:  "((int) this.getByte($))",
	wast.I32Load8U:  "(this.getByte($) & 0xFF)",
	wast.I32Load16S: "((int) this.getShort($))",
	wast.I32Load16U: "(this.getShort($) & 0xFFFF)",
	wast.I64Load8S:  "((long) this.getByte($))",
	wast.I64Load8U:  "(((long) this.getByte($)) & 0xFFL)",
	wast.I64Load16S: "((long) this.getShort($))",
	wast.I64Load16U: "(((long) this.getShort($)) & 0xFFFFL)",
	wast.I64Load32S: "((long) this.getInt($))",
	wast.I64Load32U: "(((long) this.getInt($)) & 0xFFFFFFFFL)",
}

// stores take (address, value).
var stores = map[wast.Op]string{
	wast.I32Store:   "this.putInt(%s, %s);",
	wast.I64Store:   "this.putLong(%s, %s);",
	wast.F32Store:   "this.putFloat(%s, %s);",
	wast.F64Store:   "this.putDouble(%s, %s);",
	wast.I32Store8:  "this.putByte(%s, (byte) (%s));",
	wast.I32Store16: "this.putShort(%s, (short) (%s));",
	wast.I64Store8:  "this.putByte(%s, (byte) (%s));",
	wast.I64Store16: "this.putShort(%s, (short) (%s));",
	wast.I64Store32: "this.putInt(%s, (int) (%s));",
}

// helpers holds the bodies of Op_* methods for operators without a native
// form. Each entry is the full method text.
var helpers = map[wast.Op]string{
	wast.I32TruncF32U: trunc("int", "float", "(int) (long)", "-1.0f", "4294967296.0f"),
	wast.I32TruncF64U: trunc("int", "double", "(int) (long)", "-1.0", "4294967296.0"),
	wast.I32TruncF32S: trunc("int", "float", "(int)", "-2147483904.0f", "2147483648.0f"),
	wast.I32TruncF64S: trunc("int", "double", "(int)", "-2147483649.0", "2147483648.0"),
	wast.I64TruncF32S: trunc("long", "float", "(long)", "-9223373136366403584.0f", "9223372036854775808.0f"),
	wast.I64TruncF64S: trunc("long", "double", "(long)", "-9223372036854777856.0", "9223372036854775808.0"),

	wast.I64TruncF32U: `private static long Op_i64_trunc_f32_u(float x) {
if (Float.isNaN(x) || x <= -1.0f || x >= 18446744073709551616.0f) throw new ArithmeticException("integer overflow");
return x >= 9223372036854775808.0f ? ((long) (x - 9223372036854775808.0f)) ^ Long.MIN_VALUE : (long) x;
}`,
	wast.I64TruncF64U: `private static long Op_i64_trunc_f64_u(double x) {
if (Double.isNaN(x) || x <= -1.0 || x >= 18446744073709551616.0) throw new ArithmeticException("integer overflow");
return x >= 9223372036854775808.0 ? ((long) (x - 9223372036854775808.0)) ^ Long.MIN_VALUE : (long) x;
}`,

	wast.I32TruncSatF32U: `private static int Op_i32_trunc_sat_f32_u(float x) {
if (Float.isNaN(x) || x <= 0) return 0;
if (x >= 4294967296.0f) return -1;
return (int) (long) x;
}`,
	wast.I32TruncSatF64U: `private static int Op_i32_trunc_sat_f64_u(double x) {
if (Double.isNaN(x) || x <= 0) return 0;
if (x >= 4294967296.0) return -1;
return (int) (long) x;
}`,
	wast.I64TruncSatF32U: `private static long Op_i64_trunc_sat_f32_u(float x) {
if (Float.isNaN(x) || x <= 0) return 0L;
if (x >= 18446744073709551616.0f) return -1L;
return x >= 9223372036854775808.0f ? ((long) (x - 9223372036854775808.0f)) ^ Long.MIN_VALUE : (long) x;
}`,
	wast.I64TruncSatF64U: `private static long Op_i64_trunc_sat_f64_u(double x) {
if (Double.isNaN(x) || x <= 0) return 0L;
if (x >= 18446744073709551616.0) return -1L;
return x >= 9223372036854775808.0 ? ((long) (x - 9223372036854775808.0)) ^ Long.MIN_VALUE : (long) x;
}`,

	wast.F32ConvertI32U: `private static float Op_f32_convert_i32_u(int x) {
return (float) (x & 0xFFFFFFFFL);
}`,
	// round to odd keeps the final float rounding correct
	wast.F32ConvertI64U: `private static float Op_f32_convert_i64_u(long x) {
if (x >= 0) return (float) x;
return (float) ((x >>> 1) | (x & 1L)) * 2.0f;
}`,
	wast.F64ConvertI64U: `private static double Op_f64_convert_i64_u(long x) {
if (x >= 0) return (double) x;
return (double) ((x >>> 1) | (x & 1L)) * 2.0;
}`,

	wast.F32Trunc: `private static float Op_f32_trunc(float x) {
return (float) (x < 0 ? Math.ceil(x) : Math.floor(x));
}`,
	wast.F64Trunc: `private static double Op_f64_trunc(double x) {
return x < 0 ? Math.ceil(x) : Math.floor(x);
}`,

	wast.MemorySize: `private int Op_memory_size() {
return this.memory.capacity() / PAGE_SIZE;
}`,
	wast.MemoryGrow: `private int Op_memory_grow(int delta) {
int old = this.memory.capacity() / PAGE_SIZE;
if (delta < 0 || (long) old + delta > MAX_PAGES) return -1;
if (delta == 0) return old;
java.nio.ByteBuffer grown = java.nio.ByteBuffer.allocate((old + delta) * PAGE_SIZE).order(java.nio.ByteOrder.LITTLE_ENDIAN);
this.memory.position(0);
grown.put(this.memory);
grown.position(0);
this.memory = grown;
return old;
}`,
	wast.MemoryCopy: `private void Op_memory_copy(int dst, int src, int n) {
byte[] tmp = new byte[n];
this.memory.get(src, tmp, 0, n);
this.memory.put(dst, tmp, 0, n);
}`,
	wast.MemoryFill: `private void Op_memory_fill(int dst, int value, int n) {
for (int i = 0; i < n; i++) this.memory.put(dst + i, (byte) value);
}`,
}

// trunc builds a trapping float-to-int conversion. lo and hi are the
// exclusive bounds of the representable range.
func trunc(result, operand, cast, lo, hi string) string {
	nan := "Float.isNaN(x)"
	if operand == "double" {
		nan = "Double.isNaN(x)"
	}
	name := map[string]string{"int": "i32", "long": "i64"}[result]
	from := map[string]string{"float": "f32", "double": "f64"}[operand]
	suffix := "_s"
	if cast == "(int) (long)" {
		suffix = "_u"
	}
	return fmt.Sprintf(`private static %s Op_%s_trunc_%s%s(%s x) {
if (%s) throw new ArithmeticException("invalid conversion to integer");
if (x <= %s || x >= %s) throw new ArithmeticException("integer overflow");
return %s x;
}`, result, name, from, suffix, operand, nan, lo, hi, cast)
}

// Helper returns the Java method implementing op in intrinsic form. Operators
// without a known body get a method that throws when called.
func Helper(op wast.Op) string {
	if body, ok := helpers[op]; ok {
		return body
	}
	params, result := helperSignature(op)
	ret := Type(result)
	body := fmt.Sprintf("throw new UnsupportedOperationException(%s);", javaString(op.Name()))
	return fmt.Sprintf("private %s %s(%s) {\n%s\n}", ret, op.Intrinsic(), params, body)
}

// helperSignature is the parameter list an intrinsic call passes for op.
func helperSignature(op wast.Op) (string, wast.Type) {
	switch op.Class() {
	case wast.ClassLoad:
		return "int addr, int offset, int align", op.Result()
	case wast.ClassStore:
		return "int addr, int offset, int align, " + Type(op.Operand()) + " value", wast.Void
	case wast.ClassBinary, wast.ClassCompare:
		t := Type(op.Operand())
		return t + " a, " + t + " b", op.Result()
	default:
		if op.Operand() == wast.Void {
			return "", op.Result()
		}
		return Type(op.Operand()) + " a", op.Result()
	}
}
