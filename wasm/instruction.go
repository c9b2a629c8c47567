package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-exporter/wasm/internal/binary"
)

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // -64=void, -1=i32, -2=i64, -3=f32, -4=f64, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect instruction.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Align  uint32
	Offset uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const instruction.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Value float64
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// ResultType returns the value type produced by a block type, or false for void.
func (b BlockImm) ResultType() (ValType, bool) {
	switch b.Type {
	case BlockTypeI32:
		return ValI32, true
	case BlockTypeI64:
		return ValI64, true
	case BlockTypeF32:
		return ValF32, true
	case BlockTypeF64:
		return ValF64, true
	default:
		return 0, false
	}
}

// DecodeInstructions decodes a sequence of instructions from raw bytes
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		instr, err := decodeImmediate(r, op)
		if err != nil {
			return nil, r.WrapError(fmt.Sprintf("opcode 0x%02x", op), err)
		}
		instrs = append(instrs, instr)
	}

	return instrs, nil
}

func decodeImmediate(r *binary.Reader, op byte) (Instruction, error) {
	instr := Instruction{Opcode: op}
	var err error

	switch op {
	case OpBlock, OpLoop, OpIf:
		var bt int32
		bt, err = r.ReadS32()
		instr.Imm = BlockImm{Type: bt}

	case OpBr, OpBrIf:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = BranchImm{LabelIdx: idx}

	case OpBrTable:
		var count uint32
		if count, err = r.ReadU32(); err != nil {
			return instr, err
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return instr, err
			}
		}
		var def uint32
		def, err = r.ReadU32()
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case OpCall:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = CallImm{FuncIdx: idx}

	case OpCallIndirect:
		var typeIdx, tableIdx uint32
		if typeIdx, err = r.ReadU32(); err != nil {
			return instr, err
		}
		tableIdx, err = r.ReadU32()
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = LocalImm{LocalIdx: idx}

	case OpGlobalGet, OpGlobalSet:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case OpMemorySize, OpMemoryGrow:
		// reserved memory index byte
		_, err = r.ReadByte()

	case OpI32Const:
		var v int32
		v, err = r.ReadS32()
		instr.Imm = I32Imm{Value: v}

	case OpI64Const:
		var v int64
		v, err = r.ReadS64()
		instr.Imm = I64Imm{Value: v}

	case OpF32Const:
		var v float32
		v, err = r.ReadF32()
		instr.Imm = F32Imm{Value: v}

	case OpF64Const:
		var v float64
		v, err = r.ReadF64()
		instr.Imm = F64Imm{Value: v}

	case OpPrefixMisc:
		instr.Imm, err = decodeMiscImmediate(r)

	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect:

	default:
		switch {
		case op >= OpI32Load && op <= OpI64Store32:
			var imm MemoryImm
			if imm.Align, err = r.ReadU32(); err != nil {
				return instr, err
			}
			imm.Offset, err = r.ReadU32()
			instr.Imm = imm
		case op >= OpI32Eqz && op <= OpI64Extend32S:
			// numeric instructions carry no immediates
		default:
			return instr, fmt.Errorf("unknown opcode 0x%02x", op)
		}
	}

	return instr, err
}

func decodeMiscImmediate(r *binary.Reader) (MiscImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	imm := MiscImm{SubOpcode: sub}
	var operands int
	switch sub {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
		MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U:
	case MiscMemoryInit, MiscMemoryCopy:
		operands = 2
	case MiscDataDrop, MiscMemoryFill:
		operands = 1
	default:
		return imm, fmt.Errorf("unknown misc sub-opcode %d", sub)
	}
	for i := 0; i < operands; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = append(imm.Operands, v)
	}
	return imm, nil
}

// EncodeInstructions encodes instructions back to their binary form
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}

func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS32(imm.Type)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case MemoryImm:
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteF32(imm.Value)
	case F64Imm:
		w.WriteF64(imm.Value)
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, v := range imm.Operands {
			w.WriteU32(v)
		}
	default:
		if instr.Opcode == OpMemorySize || instr.Opcode == OpMemoryGrow {
			w.Byte(0)
		}
	}
}

// ConstValue returns the single value-producing instruction of a constant
// expression such as a global initializer or segment offset.
func ConstValue(expr []byte) (Instruction, error) {
	instrs, err := DecodeInstructions(expr)
	if err != nil {
		return Instruction{}, err
	}
	if len(instrs) != 2 || instrs[1].Opcode != OpEnd {
		return Instruction{}, fmt.Errorf("constant expression has %d instructions", len(instrs))
	}
	return instrs[0], nil
}
