package lower

import (
	"strings"
	"testing"

	"github.com/wippyai/wasm-exporter/wasm"
)

func TestParseTree_Sequence(t *testing.T) {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 2}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}

	seq, err := parseTree(instrs)
	if err != nil {
		t.Fatalf("parseTree: %v", err)
	}
	if len(seq.children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(seq.children))
	}
}

func TestParseTree_Nested(t *testing.T) {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeI32}},
		{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 0}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 42}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpEnd},
	}

	seq, err := parseTree(instrs)
	if err != nil {
		t.Fatalf("parseTree: %v", err)
	}
	block, ok := seq.children[0].(*blockNode)
	if !ok || block.opcode != wasm.OpBlock {
		t.Fatalf("expected block, got %T", seq.children[0])
	}
	if len(block.body.children) != 2 {
		t.Fatalf("expected 2 block children, got %d", len(block.body.children))
	}
	loop, ok := block.body.children[0].(*blockNode)
	if !ok || loop.opcode != wasm.OpLoop {
		t.Fatalf("expected loop, got %T", block.body.children[0])
	}
}

func TestParseTree_IfElse(t *testing.T) {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeI32}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpElse},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 2}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpEnd},
	}

	seq, err := parseTree(instrs)
	if err != nil {
		t.Fatalf("parseTree: %v", err)
	}
	n, ok := seq.children[1].(*ifNode)
	if !ok {
		t.Fatalf("expected ifNode, got %T", seq.children[1])
	}
	if !n.hasElse || n.els == nil {
		t.Fatal("expected else arm")
	}
	if len(n.then.children) != 1 || len(n.els.children) != 1 {
		t.Fatalf("arms: %d/%d", len(n.then.children), len(n.els.children))
	}
}

func TestParseTree_Errors(t *testing.T) {
	tests := []struct {
		name   string
		instrs []wasm.Instruction
		want   string
	}{
		{
			name:   "missing end",
			instrs: []wasm.Instruction{{Opcode: wasm.OpNop}},
			want:   "missing end",
		},
		{
			name: "else in block",
			instrs: []wasm.Instruction{
				{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
				{Opcode: wasm.OpElse},
				{Opcode: wasm.OpEnd},
				{Opcode: wasm.OpEnd},
			},
			want: "else without if",
		},
		{
			name: "duplicate else",
			instrs: []wasm.Instruction{
				{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
				{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
				{Opcode: wasm.OpElse},
				{Opcode: wasm.OpElse},
				{Opcode: wasm.OpEnd},
				{Opcode: wasm.OpEnd},
			},
			want: "duplicate else",
		},
		{
			name:   "else at top level",
			instrs: []wasm.Instruction{{Opcode: wasm.OpElse}},
			want:   "not terminated by end",
		},
		{
			name:   "trailing code",
			instrs: []wasm.Instruction{{Opcode: wasm.OpEnd}, {Opcode: wasm.OpNop}},
			want:   "after function end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTree(tt.instrs)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
