package wasm

import (
	"reflect"
	"testing"
)

func TestDecodeInstructionsRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}},
		{Opcode: OpLoop, Imm: BlockImm{Type: BlockTypeI32}},
		{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 3}},
		{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: 1}},
		{Opcode: OpI64Const, Imm: I64Imm{Value: -1 << 40}},
		{Opcode: OpF32Const, Imm: F32Imm{Value: 0.5}},
		{Opcode: OpF64Const, Imm: F64Imm{Value: 3.25}},
		{Opcode: OpI32Load16U, Imm: MemoryImm{Align: 1, Offset: 12}},
		{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1}, Default: 0}},
		{Opcode: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: 2}},
		{Opcode: OpMemoryGrow},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryCopy, Operands: []uint32{0, 0}}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscI32TruncSatF64U}},
		{Opcode: OpI32Extend8S},
		{Opcode: OpEnd},
		{Opcode: OpEnd},
	}

	got, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(got) != len(instrs) {
		t.Fatalf("decoded %d instructions, want %d", len(got), len(instrs))
	}
	for i := range instrs {
		if got[i].Opcode != instrs[i].Opcode {
			t.Fatalf("instr %d opcode 0x%02x, want 0x%02x", i, got[i].Opcode, instrs[i].Opcode)
		}
		if instrs[i].Imm != nil && !reflect.DeepEqual(got[i].Imm, instrs[i].Imm) {
			t.Fatalf("instr %d imm %#v, want %#v", i, got[i].Imm, instrs[i].Imm)
		}
	}
}

func TestDecodeInstructionsRejectsUnknown(t *testing.T) {
	tests := [][]byte{
		{0xFD, 0x00},       // SIMD prefix
		{0xD0, 0x70},       // ref.null
		{OpPrefixMisc, 20}, // unknown misc op
		{OpI32Const},       // truncated immediate
	}
	for _, code := range tests {
		if _, err := DecodeInstructions(code); err == nil {
			t.Fatalf("expected error for %v", code)
		}
	}
}

func TestBlockResultType(t *testing.T) {
	if _, ok := (BlockImm{Type: BlockTypeVoid}).ResultType(); ok {
		t.Fatal("void block has no result")
	}
	if vt, ok := (BlockImm{Type: BlockTypeF64}).ResultType(); !ok || vt != ValF64 {
		t.Fatalf("got %v, %v", vt, ok)
	}
}

func TestConstValue(t *testing.T) {
	instr, err := ConstValue(i32Const(-7))
	if err != nil {
		t.Fatalf("ConstValue: %v", err)
	}
	if imm, ok := instr.Imm.(I32Imm); !ok || imm.Value != -7 {
		t.Fatalf("got %#v", instr)
	}

	bad := EncodeInstructions([]Instruction{
		{Opcode: OpI32Const, Imm: I32Imm{Value: 1}},
		{Opcode: OpI32Const, Imm: I32Imm{Value: 2}},
		{Opcode: OpEnd},
	})
	if _, err := ConstValue(bad); err == nil {
		t.Fatal("expected error for multi-instruction expression")
	}
}
