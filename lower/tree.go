package lower

import (
	"fmt"

	"github.com/wippyai/wasm-exporter/wasm"
)

// node is an element of the structured instruction tree.
type node interface {
	treeNode()
}

// seqNode is a straight-line list of nodes.
type seqNode struct {
	children []node
}

// blockNode is a block or loop construct.
type blockNode struct {
	body   *seqNode
	imm    wasm.BlockImm
	opcode byte
}

// ifNode is an if construct with an optional else arm.
type ifNode struct {
	then    *seqNode
	els     *seqNode // nil without else
	imm     wasm.BlockImm
	hasElse bool
}

// instrNode is a single non-structural instruction.
type instrNode struct {
	instr wasm.Instruction
}

func (*seqNode) treeNode()   {}
func (*blockNode) treeNode() {}
func (*ifNode) treeNode()    {}
func (*instrNode) treeNode() {}

// parseTree converts a function body's instruction stream into a tree.
// The stream must be terminated by the function's own end.
func parseTree(instrs []wasm.Instruction) (*seqNode, error) {
	p := &treeParser{instrs: instrs}
	body, term, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if term != wasm.OpEnd {
		return nil, fmt.Errorf("function body is not terminated by end")
	}
	if p.pos != len(p.instrs) {
		return nil, fmt.Errorf("%d instructions after function end", len(p.instrs)-p.pos)
	}
	return body, nil
}

type treeParser struct {
	instrs []wasm.Instruction
	pos    int
}

// parseSeq reads until end or else and reports which one stopped it.
// The terminator is consumed.
func (p *treeParser) parseSeq() (*seqNode, byte, error) {
	seq := &seqNode{}

	for p.pos < len(p.instrs) {
		instr := p.instrs[p.pos]
		p.pos++

		switch instr.Opcode {
		case wasm.OpEnd, wasm.OpElse:
			return seq, instr.Opcode, nil

		case wasm.OpBlock, wasm.OpLoop:
			body, term, err := p.parseSeq()
			if err != nil {
				return nil, 0, err
			}
			if term != wasm.OpEnd {
				return nil, 0, fmt.Errorf("else without if at instruction %d", p.pos-1)
			}
			seq.children = append(seq.children, &blockNode{
				opcode: instr.Opcode,
				imm:    instr.Imm.(wasm.BlockImm),
				body:   body,
			})

		case wasm.OpIf:
			n := &ifNode{imm: instr.Imm.(wasm.BlockImm)}
			then, term, err := p.parseSeq()
			if err != nil {
				return nil, 0, err
			}
			n.then = then
			if term == wasm.OpElse {
				n.hasElse = true
				els, term, err := p.parseSeq()
				if err != nil {
					return nil, 0, err
				}
				if term != wasm.OpEnd {
					return nil, 0, fmt.Errorf("duplicate else at instruction %d", p.pos-1)
				}
				n.els = els
			}
			seq.children = append(seq.children, n)

		default:
			seq.children = append(seq.children, &instrNode{instr: instr})
		}
	}

	return seq, 0, fmt.Errorf("unexpected end of code: missing end")
}
