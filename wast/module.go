package wast

import "strings"

// Type is a WebAssembly value type as seen by the emitter.
type Type uint8

const (
	Void Type = iota
	I32
	I64
	F32
	F64
)

// ValueTypes lists the four numeric types in a fixed order.
var ValueTypes = [...]Type{I32, I64, F32, F64}

func (t Type) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "void"
	}
}

// key returns the single-letter signature code for t.
func (t Type) key() byte {
	switch t {
	case I32:
		return 'i'
	case I64:
		return 'I'
	case F32:
		return 'f'
	case F64:
		return 'F'
	default:
		return 'v'
	}
}

// Handles into the per-module and per-function tables. A handle is the
// identity of the entity; names are assigned later by the exporter.
type (
	FuncID   int
	GlobalID int
	LocalID  int
	LabelID  int
)

// NoLabel marks a block or loop that no branch targets.
const NoLabel LabelID = -1

// LabelKind selects the keyword used when a branch targets the label.
type LabelKind uint8

const (
	// Break exits the labeled construct (block exit, loop exit).
	Break LabelKind = iota
	// Continue re-enters the labeled loop.
	Continue
)

func (k LabelKind) String() string {
	if k == Continue {
		return "continue"
	}
	return "break"
}

// Label is a branch target owned by a function.
type Label struct {
	Name string
	Kind LabelKind
}

// Local is a parameter or local variable owned by a function.
type Local struct {
	Name string
	Type Type
}

// Import is the (namespace, name) pair of an external symbol.
type Import struct {
	Namespace string
	Name      string
}

func (i Import) String() string {
	return i.Namespace + "." + i.Name
}

// Signature is a function type with at most one result.
type Signature struct {
	Params []Type
	Result Type
}

// Key returns a compact identifier-safe encoding, e.g. "piIrf" for (i32, i64) -> f32.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteByte('p')
	for _, t := range s.Params {
		b.WriteByte(t.key())
	}
	b.WriteByte('r')
	if s.Result != Void {
		b.WriteByte(s.Result.key())
	}
	return b.String()
}

// Func is a defined or imported function. Locals starts with the parameters.
type Func struct {
	Import  *Import
	Body    Stm
	Name    string
	Exports []string
	Sig     Signature
	Locals  []Local
	Labels  []Label
}

// Imported reports whether the function is provided by the host.
func (f *Func) Imported() bool {
	return f.Import != nil
}

// Params returns the parameter handles of f.
func (f *Func) Params() []LocalID {
	ids := make([]LocalID, len(f.Sig.Params))
	for i := range ids {
		ids[i] = LocalID(i)
	}
	return ids
}

// Global is a defined or imported global variable.
type Global struct {
	Import  *Import
	Init    Expr // Const or GetGlobal of an imported global
	Name    string
	Exports []string
	Type    Type
	Mutable bool
}

// Memory describes the single linear memory in 64KiB pages.
type Memory struct {
	Import  *Import
	Max     *uint32
	Exports []string
	Pages   uint32
}

// Segment places function references into the table.
type Segment struct {
	Offset Expr
	Funcs  []FuncID
}

// Table is the single funcref table used by indirect calls.
type Table struct {
	Import   *Import
	Segments []Segment
	Size     uint32
}

// DataSegment initializes a range of linear memory.
type DataSegment struct {
	Offset Expr
	Data   []byte
}

// Module is the lowered input of the exporter. It is read-only during emission.
type Module struct {
	Start   *FuncID
	Memory  *Memory
	Table   *Table
	Name    string
	Funcs   []Func
	Globals []Global
	Data    []DataSegment
}

// ImportedFuncs returns the handles of every imported function in module order.
func (m *Module) ImportedFuncs() []FuncID {
	var ids []FuncID
	for i := range m.Funcs {
		if m.Funcs[i].Imported() {
			ids = append(ids, FuncID(i))
		}
	}
	return ids
}

// Imports returns every import binding of the module in declaration order.
func (m *Module) Imports() []Import {
	var out []Import
	for i := range m.Funcs {
		if imp := m.Funcs[i].Import; imp != nil {
			out = append(out, *imp)
		}
	}
	for i := range m.Globals {
		if imp := m.Globals[i].Import; imp != nil {
			out = append(out, *imp)
		}
	}
	if m.Memory != nil && m.Memory.Import != nil {
		out = append(out, *m.Memory.Import)
	}
	if m.Table != nil && m.Table.Import != nil {
		out = append(out, *m.Table.Import)
	}
	return out
}
