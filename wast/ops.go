package wast

import (
	"fmt"
	"strings"
)

// Op identifies a WebAssembly operator. Single-byte opcodes keep their binary
// value; 0xFC-prefixed operators are encoded as 0xFC00 | sub-opcode.
type Op uint16

// OpClass groups operators by how they consume and produce values.
type OpClass uint8

const (
	ClassInvalid OpClass = iota
	ClassTest            // eqz: one operand, boolean result
	ClassCompare         // two operands, boolean result
	ClassUnary
	ClassBinary
	ClassConvert
	ClassLoad
	ClassStore
	ClassMemory // memory.size, memory.grow, memory.copy, memory.fill
)

// MiscPrefix is OR-ed with 0xFC sub-opcodes to form an Op.
const MiscPrefix Op = 0xFC00

const (
	I32Load    Op = 0x28
	I64Load    Op = 0x29
	F32Load    Op = 0x2A
	F64Load    Op = 0x2B
	I32Load8S  Op = 0x2C
	I32Load8U  Op = 0x2D
	I32Load16S Op = 0x2E
	I32Load16U Op = 0x2F
	I64Load8S  Op = 0x30
	I64Load8U  Op = 0x31
	I64Load16S Op = 0x32
	I64Load16U Op = 0x33
	I64Load32S Op = 0x34
	I64Load32U Op = 0x35
	I32Store   Op = 0x36
	I64Store   Op = 0x37
	F32Store   Op = 0x38
	F64Store   Op = 0x39
	I32Store8  Op = 0x3A
	I32Store16 Op = 0x3B
	I64Store8  Op = 0x3C
	I64Store16 Op = 0x3D
	I64Store32 Op = 0x3E
	MemorySize Op = 0x3F
	MemoryGrow Op = 0x40

	I32Eqz Op = 0x45
	I32Eq  Op = 0x46
	I32Ne  Op = 0x47
	I32LtS Op = 0x48
	I32LtU Op = 0x49
	I32GtS Op = 0x4A
	I32GtU Op = 0x4B
	I32LeS Op = 0x4C
	I32LeU Op = 0x4D
	I32GeS Op = 0x4E
	I32GeU Op = 0x4F
	I64Eqz Op = 0x50
	I64Eq  Op = 0x51
	I64Ne  Op = 0x52
	I64LtS Op = 0x53
	I64LtU Op = 0x54
	I64GtS Op = 0x55
	I64GtU Op = 0x56
	I64LeS Op = 0x57
	I64LeU Op = 0x58
	I64GeS Op = 0x59
	I64GeU Op = 0x5A
	F32Eq  Op = 0x5B
	F32Ne  Op = 0x5C
	F32Lt  Op = 0x5D
	F32Gt  Op = 0x5E
	F32Le  Op = 0x5F
	F32Ge  Op = 0x60
	F64Eq  Op = 0x61
	F64Ne  Op = 0x62
	F64Lt  Op = 0x63
	F64Gt  Op = 0x64
	F64Le  Op = 0x65
	F64Ge  Op = 0x66

	I32Clz    Op = 0x67
	I32Ctz    Op = 0x68
	I32Popcnt Op = 0x69
	I32Add    Op = 0x6A
	I32Sub    Op = 0x6B
	I32Mul    Op = 0x6C
	I32DivS   Op = 0x6D
	I32DivU   Op = 0x6E
	I32RemS   Op = 0x6F
	I32RemU   Op = 0x70
	I32And    Op = 0x71
	I32Or     Op = 0x72
	I32Xor    Op = 0x73
	I32Shl    Op = 0x74
	I32ShrS   Op = 0x75
	I32ShrU   Op = 0x76
	I32Rotl   Op = 0x77
	I32Rotr   Op = 0x78
	I64Clz    Op = 0x79
	I64Ctz    Op = 0x7A
	I64Popcnt Op = 0x7B
	I64Add    Op = 0x7C
	I64Sub    Op = 0x7D
	I64Mul    Op = 0x7E
	I64DivS   Op = 0x7F
	I64DivU   Op = 0x80
	I64RemS   Op = 0x81
	I64RemU   Op = 0x82
	I64And    Op = 0x83
	I64Or     Op = 0x84
	I64Xor    Op = 0x85
	I64Shl    Op = 0x86
	I64ShrS   Op = 0x87
	I64ShrU   Op = 0x88
	I64Rotl   Op = 0x89
	I64Rotr   Op = 0x8A

	F32Abs      Op = 0x8B
	F32Neg      Op = 0x8C
	F32Ceil     Op = 0x8D
	F32Floor    Op = 0x8E
	F32Trunc    Op = 0x8F
	F32Nearest  Op = 0x90
	F32Sqrt     Op = 0x91
	F32Add      Op = 0x92
	F32Sub      Op = 0x93
	F32Mul      Op = 0x94
	F32Div      Op = 0x95
	F32Min      Op = 0x96
	F32Max      Op = 0x97
	F32Copysign Op = 0x98
	F64Abs      Op = 0x99
	F64Neg      Op = 0x9A
	F64Ceil     Op = 0x9B
	F64Floor    Op = 0x9C
	F64Trunc    Op = 0x9D
	F64Nearest  Op = 0x9E
	F64Sqrt     Op = 0x9F
	F64Add      Op = 0xA0
	F64Sub      Op = 0xA1
	F64Mul      Op = 0xA2
	F64Div      Op = 0xA3
	F64Min      Op = 0xA4
	F64Max      Op = 0xA5
	F64Copysign Op = 0xA6

	I32WrapI64        Op = 0xA7
	I32TruncF32S      Op = 0xA8
	I32TruncF32U      Op = 0xA9
	I32TruncF64S      Op = 0xAA
	I32TruncF64U      Op = 0xAB
	I64ExtendI32S     Op = 0xAC
	I64ExtendI32U     Op = 0xAD
	I64TruncF32S      Op = 0xAE
	I64TruncF32U      Op = 0xAF
	I64TruncF64S      Op = 0xB0
	I64TruncF64U      Op = 0xB1
	F32ConvertI32S    Op = 0xB2
	F32ConvertI32U    Op = 0xB3
	F32ConvertI64S    Op = 0xB4
	F32ConvertI64U    Op = 0xB5
	F32DemoteF64      Op = 0xB6
	F64ConvertI32S    Op = 0xB7
	F64ConvertI32U    Op = 0xB8
	F64ConvertI64S    Op = 0xB9
	F64ConvertI64U    Op = 0xBA
	F64PromoteF32     Op = 0xBB
	I32ReinterpretF32 Op = 0xBC
	I64ReinterpretF64 Op = 0xBD
	F32ReinterpretI32 Op = 0xBE
	F64ReinterpretI64 Op = 0xBF
	I32Extend8S       Op = 0xC0
	I32Extend16S      Op = 0xC1
	I64Extend8S       Op = 0xC2
	I64Extend16S      Op = 0xC3
	I64Extend32S      Op = 0xC4

	I32TruncSatF32S = MiscPrefix | 0x00
	I32TruncSatF32U = MiscPrefix | 0x01
	I32TruncSatF64S = MiscPrefix | 0x02
	I32TruncSatF64U = MiscPrefix | 0x03
	I64TruncSatF32S = MiscPrefix | 0x04
	I64TruncSatF32U = MiscPrefix | 0x05
	I64TruncSatF64S = MiscPrefix | 0x06
	I64TruncSatF64U = MiscPrefix | 0x07
	MemoryCopy      = MiscPrefix | 0x0A
	MemoryFill      = MiscPrefix | 0x0B
)

type opInfo struct {
	name  string
	class OpClass
	arg   Type // operand type; value type for stores
	res   Type
}

var opTable = map[Op]opInfo{
	I32Load:    {"i32.load", ClassLoad, I32, I32},
	I64Load:    {"i64.load", ClassLoad, I32, I64},
	F32Load:    {"f32.load", ClassLoad, I32, F32},
	F64Load:    {"f64.load", ClassLoad, I32, F64},
	I32Load8S:  {"i32.load8_s", ClassLoad, I32, I32},
	I32Load8U:  {"i32.load8_u", ClassLoad, I32, I32},
	I32Load16S: {"i32.load16_s", ClassLoad, I32, I32},
	I32Load16U: {"i32.load16_u", ClassLoad, I32, I32},
	I64Load8S:  {"i64.load8_s", ClassLoad, I32, I64},
	I64Load8U:  {"i64.load8_u", ClassLoad, I32, I64},
	I64Load16S: {"i64.load16_s", ClassLoad, I32, I64},
	I64Load16U: {"i64.load16_u", ClassLoad, I32, I64},
	I64Load32S: {"i64.load32_s", ClassLoad, I32, I64},
	I64Load32U: {"i64.load32_u", ClassLoad, I32, I64},
	I32Store:   {"i32.store", ClassStore, I32, Void},
	I64Store:   {"i64.store", ClassStore, I64, Void},
	F32Store:   {"f32.store", ClassStore, F32, Void},
	F64Store:   {"f64.store", ClassStore, F64, Void},
	I32Store8:  {"i32.store8", ClassStore, I32, Void},
	I32Store16: {"i32.store16", ClassStore, I32, Void},
	I64Store8:  {"i64.store8", ClassStore, I64, Void},
	I64Store16: {"i64.store16", ClassStore, I64, Void},
	I64Store32: {"i64.store32", ClassStore, I64, Void},
	MemorySize: {"memory.size", ClassMemory, Void, I32},
	MemoryGrow: {"memory.grow", ClassMemory, I32, I32},
	MemoryCopy: {"memory.copy", ClassMemory, I32, Void},
	MemoryFill: {"memory.fill", ClassMemory, I32, Void},

	I32Eqz: {"i32.eqz", ClassTest, I32, I32},
	I32Eq:  {"i32.eq", ClassCompare, I32, I32},
	I32Ne:  {"i32.ne", ClassCompare, I32, I32},
	I32LtS: {"i32.lt_s", ClassCompare, I32, I32},
	I32LtU: {"i32.lt_u", ClassCompare, I32, I32},
	I32GtS: {"i32.gt_s", ClassCompare, I32, I32},
	I32GtU: {"i32.gt_u", ClassCompare, I32, I32},
	I32LeS: {"i32.le_s", ClassCompare, I32, I32},
	I32LeU: {"i32.le_u", ClassCompare, I32, I32},
	I32GeS: {"i32.ge_s", ClassCompare, I32, I32},
	I32GeU: {"i32.ge_u", ClassCompare, I32, I32},
	I64Eqz: {"i64.eqz", ClassTest, I64, I32},
	I64Eq:  {"i64.eq", ClassCompare, I64, I32},
	I64Ne:  {"i64.ne", ClassCompare, I64, I32},
	I64LtS: {"i64.lt_s", ClassCompare, I64, I32},
	I64LtU: {"i64.lt_u", ClassCompare, I64, I32},
	I64GtS: {"i64.gt_s", ClassCompare, I64, I32},
	I64GtU: {"i64.gt_u", ClassCompare, I64, I32},
	I64LeS: {"i64.le_s", ClassCompare, I64, I32},
	I64LeU: {"i64.le_u", ClassCompare, I64, I32},
	I64GeS: {"i64.ge_s", ClassCompare, I64, I32},
	I64GeU: {"i64.ge_u", ClassCompare, I64, I32},
	F32Eq:  {"f32.eq", ClassCompare, F32, I32},
	F32Ne:  {"f32.ne", ClassCompare, F32, I32},
	F32Lt:  {"f32.lt", ClassCompare, F32, I32},
	F32Gt:  {"f32.gt", ClassCompare, F32, I32},
	F32Le:  {"f32.le", ClassCompare, F32, I32},
	F32Ge:  {"f32.ge", ClassCompare, F32, I32},
	F64Eq:  {"f64.eq", ClassCompare, F64, I32},
	F64Ne:  {"f64.ne", ClassCompare, F64, I32},
	F64Lt:  {"f64.lt", ClassCompare, F64, I32},
	F64Gt:  {"f64.gt", ClassCompare, F64, I32},
	F64Le:  {"f64.le", ClassCompare, F64, I32},
	F64Ge:  {"f64.ge", ClassCompare, F64, I32},

	I32Clz:    {"i32.clz", ClassUnary, I32, I32},
	I32Ctz:    {"i32.ctz", ClassUnary, I32, I32},
	I32Popcnt: {"i32.popcnt", ClassUnary, I32, I32},
	I32Add:    {"i32.add", ClassBinary, I32, I32},
	I32Sub:    {"i32.sub", ClassBinary, I32, I32},
	I32Mul:    {"i32.mul", ClassBinary, I32, I32},
	I32DivS:   {"i32.div_s", ClassBinary, I32, I32},
	I32DivU:   {"i32.div_u", ClassBinary, I32, I32},
	I32RemS:   {"i32.rem_s", ClassBinary, I32, I32},
	I32RemU:   {"i32.rem_u", ClassBinary, I32, I32},
	I32And:    {"i32.and", ClassBinary, I32, I32},
	I32Or:     {"i32.or", ClassBinary, I32, I32},
	I32Xor:    {"i32.xor", ClassBinary, I32, I32},
	I32Shl:    {"i32.shl", ClassBinary, I32, I32},
	I32ShrS:   {"i32.shr_s", ClassBinary, I32, I32},
	I32ShrU:   {"i32.shr_u", ClassBinary, I32, I32},
	I32Rotl:   {"i32.rotl", ClassBinary, I32, I32},
	I32Rotr:   {"i32.rotr", ClassBinary, I32, I32},
	I64Clz:    {"i64.clz", ClassUnary, I64, I64},
	I64Ctz:    {"i64.ctz", ClassUnary, I64, I64},
	I64Popcnt: {"i64.popcnt", ClassUnary, I64, I64},
	I64Add:    {"i64.add", ClassBinary, I64, I64},
	I64Sub:    {"i64.sub", ClassBinary, I64, I64},
	I64Mul:    {"i64.mul", ClassBinary, I64, I64},
	I64DivS:   {"i64.div_s", ClassBinary, I64, I64},
	I64DivU:   {"i64.div_u", ClassBinary, I64, I64},
	I64RemS:   {"i64.rem_s", ClassBinary, I64, I64},
	I64RemU:   {"i64.rem_u", ClassBinary, I64, I64},
	I64And:    {"i64.and", ClassBinary, I64, I64},
	I64Or:     {"i64.or", ClassBinary, I64, I64},
	I64Xor:    {"i64.xor", ClassBinary, I64, I64},
	I64Shl:    {"i64.shl", ClassBinary, I64, I64},
	I64ShrS:   {"i64.shr_s", ClassBinary, I64, I64},
	I64ShrU:   {"i64.shr_u", ClassBinary, I64, I64},
	I64Rotl:   {"i64.rotl", ClassBinary, I64, I64},
	I64Rotr:   {"i64.rotr", ClassBinary, I64, I64},

	F32Abs:      {"f32.abs", ClassUnary, F32, F32},
	F32Neg:      {"f32.neg", ClassUnary, F32, F32},
	F32Ceil:     {"f32.ceil", ClassUnary, F32, F32},
	F32Floor:    {"f32.floor", ClassUnary, F32, F32},
	F32Trunc:    {"f32.trunc", ClassUnary, F32, F32},
	F32Nearest:  {"f32.nearest", ClassUnary, F32, F32},
	F32Sqrt:     {"f32.sqrt", ClassUnary, F32, F32},
	F32Add:      {"f32.add", ClassBinary, F32, F32},
	F32Sub:      {"f32.sub", ClassBinary, F32, F32},
	F32Mul:      {"f32.mul", ClassBinary, F32, F32},
	F32Div:      {"f32.div", ClassBinary, F32, F32},
	F32Min:      {"f32.min", ClassBinary, F32, F32},
	F32Max:      {"f32.max", ClassBinary, F32, F32},
	F32Copysign: {"f32.copysign", ClassBinary, F32, F32},
	F64Abs:      {"f64.abs", ClassUnary, F64, F64},
	F64Neg:      {"f64.neg", ClassUnary, F64, F64},
	F64Ceil:     {"f64.ceil", ClassUnary, F64, F64},
	F64Floor:    {"f64.floor", ClassUnary, F64, F64},
	F64Trunc:    {"f64.trunc", ClassUnary, F64, F64},
	F64Nearest:  {"f64.nearest", ClassUnary, F64, F64},
	F64Sqrt:     {"f64.sqrt", ClassUnary, F64, F64},
	F64Add:      {"f64.add", ClassBinary, F64, F64},
	F64Sub:      {"f64.sub", ClassBinary, F64, F64},
	F64Mul:      {"f64.mul", ClassBinary, F64, F64},
	F64Div:      {"f64.div", ClassBinary, F64, F64},
	F64Min:      {"f64.min", ClassBinary, F64, F64},
	F64Max:      {"f64.max", ClassBinary, F64, F64},
	F64Copysign: {"f64.copysign", ClassBinary, F64, F64},

	I32WrapI64:        {"i32.wrap_i64", ClassConvert, I64, I32},
	I32TruncF32S:      {"i32.trunc_f32_s", ClassConvert, F32, I32},
	I32TruncF32U:      {"i32.trunc_f32_u", ClassConvert, F32, I32},
	I32TruncF64S:      {"i32.trunc_f64_s", ClassConvert, F64, I32},
	I32TruncF64U:      {"i32.trunc_f64_u", ClassConvert, F64, I32},
	I64ExtendI32S:     {"i64.extend_i32_s", ClassConvert, I32, I64},
	I64ExtendI32U:     {"i64.extend_i32_u", ClassConvert, I32, I64},
	I64TruncF32S:      {"i64.trunc_f32_s", ClassConvert, F32, I64},
	I64TruncF32U:      {"i64.trunc_f32_u", ClassConvert, F32, I64},
	I64TruncF64S:      {"i64.trunc_f64_s", ClassConvert, F64, I64},
	I64TruncF64U:      {"i64.trunc_f64_u", ClassConvert, F64, I64},
	F32ConvertI32S:    {"f32.convert_i32_s", ClassConvert, I32, F32},
	F32ConvertI32U:    {"f32.convert_i32_u", ClassConvert, I32, F32},
	F32ConvertI64S:    {"f32.convert_i64_s", ClassConvert, I64, F32},
	F32ConvertI64U:    {"f32.convert_i64_u", ClassConvert, I64, F32},
	F32DemoteF64:      {"f32.demote_f64", ClassConvert, F64, F32},
	F64ConvertI32S:    {"f64.convert_i32_s", ClassConvert, I32, F64},
	F64ConvertI32U:    {"f64.convert_i32_u", ClassConvert, I32, F64},
	F64ConvertI64S:    {"f64.convert_i64_s", ClassConvert, I64, F64},
	F64ConvertI64U:    {"f64.convert_i64_u", ClassConvert, I64, F64},
	F64PromoteF32:     {"f64.promote_f32", ClassConvert, F32, F64},
	I32ReinterpretF32: {"i32.reinterpret_f32", ClassConvert, F32, I32},
	I64ReinterpretF64: {"i64.reinterpret_f64", ClassConvert, F64, I64},
	F32ReinterpretI32: {"f32.reinterpret_i32", ClassConvert, I32, F32},
	F64ReinterpretI64: {"f64.reinterpret_i64", ClassConvert, I64, F64},
	I32Extend8S:       {"i32.extend8_s", ClassConvert, I32, I32},
	I32Extend16S:      {"i32.extend16_s", ClassConvert, I32, I32},
	I64Extend8S:       {"i64.extend8_s", ClassConvert, I64, I64},
	I64Extend16S:      {"i64.extend16_s", ClassConvert, I64, I64},
	I64Extend32S:      {"i64.extend32_s", ClassConvert, I64, I64},
	I32TruncSatF32S:   {"i32.trunc_sat_f32_s", ClassConvert, F32, I32},
	I32TruncSatF32U:   {"i32.trunc_sat_f32_u", ClassConvert, F32, I32},
	I32TruncSatF64S:   {"i32.trunc_sat_f64_s", ClassConvert, F64, I32},
	I32TruncSatF64U:   {"i32.trunc_sat_f64_u", ClassConvert, F64, I32},
	I64TruncSatF32S:   {"i64.trunc_sat_f32_s", ClassConvert, F32, I64},
	I64TruncSatF32U:   {"i64.trunc_sat_f32_u", ClassConvert, F32, I64},
	I64TruncSatF64S:   {"i64.trunc_sat_f64_s", ClassConvert, F64, I64},
	I64TruncSatF64U:   {"i64.trunc_sat_f64_u", ClassConvert, F64, I64},
}

// Valid reports whether op is a known value operator.
func (o Op) Valid() bool {
	_, ok := opTable[o]
	return ok
}

// Name returns the text-format mnemonic, e.g. "i32.add".
func (o Op) Name() string {
	if info, ok := opTable[o]; ok {
		return info.name
	}
	return fmt.Sprintf("op_%#x", uint16(o))
}

func (o Op) String() string {
	return o.Name()
}

// Class returns the operator category.
func (o Op) Class() OpClass {
	return opTable[o].class
}

// Operand returns the type of the operator's inputs. For stores it is the
// type of the stored value.
func (o Op) Operand() Type {
	return opTable[o].arg
}

// Result returns the type the operator produces, Void for stores.
func (o Op) Result() Type {
	return opTable[o].res
}

// Intrinsic returns the helper-call identifier used when a target has no
// native rendering for the operator, e.g. "Op_i32_rotl".
func (o Op) Intrinsic() string {
	return "Op_" + strings.ReplaceAll(o.Name(), ".", "_")
}

// Traps reports whether the operator can trap on some operand: integer
// division and remainder, and the non-saturating float to integer truncations.
func (o Op) Traps() bool {
	switch o {
	case I32DivS, I32DivU, I32RemS, I32RemU,
		I64DivS, I64DivU, I64RemS, I64RemU,
		I32TruncF32S, I32TruncF32U, I32TruncF64S, I32TruncF64U,
		I64TruncF32S, I64TruncF32U, I64TruncF64S, I64TruncF64U:
		return true
	}
	return false
}

// IsBoolean reports whether the operator yields a 0/1 truth value.
func (o Op) IsBoolean() bool {
	c := o.Class()
	return c == ClassTest || c == ClassCompare
}
