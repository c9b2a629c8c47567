package lower

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wasm"
	"github.com/wippyai/wasm-exporter/wast"
)

// Module lowers a decoded binary module into the exporter's tree form.
func Module(m *wasm.Module) (*wast.Module, error) {
	out := &wast.Module{}
	if m.Names != nil {
		out.Name = m.Names.Module
	}

	exports := exportNames(m)

	funcIdx := uint32(0)
	globalIdx := uint32(0)
	for _, imp := range m.Imports {
		binding := &wast.Import{Namespace: imp.Module, Name: imp.Name}
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			sig, err := signature(m, imp.Desc.TypeIdx)
			if err != nil {
				return nil, importError(imp, err)
			}
			name, ok := m.FuncName(funcIdx)
			if !ok {
				name = imp.Name
			}
			out.Funcs = append(out.Funcs, wast.Func{
				Name:    name,
				Import:  binding,
				Sig:     sig,
				Exports: exports[key{wasm.KindFunc, funcIdx}],
			})
			funcIdx++

		case wasm.KindGlobal:
			t, err := valueType(imp.Desc.Global.ValType)
			if err != nil {
				return nil, importError(imp, err)
			}
			out.Globals = append(out.Globals, wast.Global{
				Name:    imp.Name,
				Import:  binding,
				Type:    t,
				Mutable: imp.Desc.Global.Mutable,
				Exports: exports[key{wasm.KindGlobal, globalIdx}],
			})
			globalIdx++

		case wasm.KindMemory:
			out.Memory = memory(imp.Desc.Memory.Limits, binding, exports[key{wasm.KindMemory, 0}])

		case wasm.KindTable:
			out.Table = &wast.Table{
				Import: binding,
				Size:   imp.Desc.Table.Limits.Min,
			}
		}
	}

	for i, typeIdx := range m.Funcs {
		sig, err := signature(m, typeIdx)
		if err != nil {
			return nil, errors.New(errors.PhaseLower, errors.KindInvalidData).
				Func(fmt.Sprintf("f%d", funcIdx)).
				Cause(err).
				Detail("function %d type", i).
				Build()
		}
		exp := exports[key{wasm.KindFunc, funcIdx}]
		name, ok := m.FuncName(funcIdx)
		if !ok {
			if len(exp) > 0 {
				name = exp[0]
			} else {
				name = fmt.Sprintf("f%d", funcIdx)
			}
		}
		out.Funcs = append(out.Funcs, wast.Func{Name: name, Sig: sig, Exports: exp})
		funcIdx++
	}

	for _, g := range m.Globals {
		t, err := valueType(g.Type.ValType)
		if err != nil {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"global", fmt.Sprint(globalIdx)}, err.Error())
		}
		init, err := constExpr(g.Init)
		if err != nil {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"global", fmt.Sprint(globalIdx)}, err.Error())
		}
		exp := exports[key{wasm.KindGlobal, globalIdx}]
		name := fmt.Sprintf("g%d", globalIdx)
		if len(exp) > 0 {
			name = exp[0]
		}
		out.Globals = append(out.Globals, wast.Global{
			Name:    name,
			Type:    t,
			Mutable: g.Type.Mutable,
			Init:    init,
			Exports: exp,
		})
		globalIdx++
	}

	if len(m.Memories) > 1 || (len(m.Memories) == 1 && out.Memory != nil) {
		return nil, errors.Unsupported(errors.PhaseLower, "multiple memories")
	}
	if len(m.Memories) == 1 {
		out.Memory = memory(m.Memories[0].Limits, nil, exports[key{wasm.KindMemory, 0}])
	}

	if len(m.Tables) > 1 || (len(m.Tables) == 1 && out.Table != nil) {
		return nil, errors.Unsupported(errors.PhaseLower, "multiple tables")
	}
	if len(m.Tables) == 1 {
		out.Table = &wast.Table{Size: m.Tables[0].Limits.Min}
	}

	for i, elem := range m.Elements {
		if out.Table == nil || elem.TableIdx != 0 {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"element", fmt.Sprint(i)}, "segment targets a missing table")
		}
		offset, err := constExpr(elem.Offset)
		if err != nil {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"element", fmt.Sprint(i)}, err.Error())
		}
		seg := wast.Segment{Offset: offset, Funcs: make([]wast.FuncID, len(elem.FuncIdxs))}
		for j, f := range elem.FuncIdxs {
			if int(f) >= len(out.Funcs) {
				return nil, errors.OutOfBounds(errors.PhaseLower, []string{"element", fmt.Sprint(i)}, int(f), len(out.Funcs))
			}
			seg.Funcs[j] = wast.FuncID(f)
		}
		out.Table.Segments = append(out.Table.Segments, seg)
	}

	for i, seg := range m.Data {
		if seg.Offset == nil {
			// passive segments are only reachable through memory.init, which is not supported
			Logger().Debug("skipping passive data segment", zap.Int("segment", i))
			continue
		}
		if out.Memory == nil {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"data", fmt.Sprint(i)}, "segment without memory")
		}
		offset, err := constExpr(seg.Offset)
		if err != nil {
			return nil, errors.InvalidData(errors.PhaseLower, []string{"data", fmt.Sprint(i)}, err.Error())
		}
		out.Data = append(out.Data, wast.DataSegment{Offset: offset, Data: seg.Init})
	}

	if m.Start != nil {
		start := wast.FuncID(*m.Start)
		out.Start = &start
	}

	numImported := m.NumImportedFuncs()
	for i := range m.Code {
		idx := numImported + i
		if err := lowerFunc(m, out, idx, &m.Code[i]); err != nil {
			return nil, err
		}
	}

	Logger().Debug("lowered module",
		zap.Int("funcs", len(out.Funcs)),
		zap.Int("imported", numImported),
		zap.Int("globals", len(out.Globals)))

	return out, nil
}

type key struct {
	kind byte
	idx  uint32
}

func exportNames(m *wasm.Module) map[key][]string {
	names := make(map[key][]string)
	for _, exp := range m.Exports {
		k := key{exp.Kind, exp.Idx}
		names[k] = append(names[k], exp.Name)
	}
	return names
}

func importError(imp wasm.Import, err error) error {
	return errors.New(errors.PhaseLower, errors.KindInvalidData).
		Path("import", imp.Module, imp.Name).
		Cause(err).
		Build()
}

func memory(l wasm.Limits, imp *wast.Import, exports []string) *wast.Memory {
	mem := &wast.Memory{Import: imp, Pages: l.Min, Exports: exports}
	if l.Max != nil {
		maxPages := *l.Max
		mem.Max = &maxPages
	}
	return mem
}

func valueType(v wasm.ValType) (wast.Type, error) {
	switch v {
	case wasm.ValI32:
		return wast.I32, nil
	case wasm.ValI64:
		return wast.I64, nil
	case wasm.ValF32:
		return wast.F32, nil
	case wasm.ValF64:
		return wast.F64, nil
	default:
		return wast.Void, fmt.Errorf("unsupported value type %s", v)
	}
}

func signature(m *wasm.Module, typeIdx uint32) (wast.Signature, error) {
	ft := m.TypeAt(typeIdx)
	if ft == nil {
		return wast.Signature{}, fmt.Errorf("type index %d out of range", typeIdx)
	}
	var sig wast.Signature
	for _, p := range ft.Params {
		t, err := valueType(p)
		if err != nil {
			return sig, err
		}
		sig.Params = append(sig.Params, t)
	}
	switch len(ft.Results) {
	case 0:
	case 1:
		t, err := valueType(ft.Results[0])
		if err != nil {
			return sig, err
		}
		sig.Result = t
	default:
		return sig, fmt.Errorf("multi-value results are not supported")
	}
	return sig, nil
}

// constExpr converts a constant initializer into a Const or GetGlobal.
func constExpr(expr []byte) (wast.Expr, error) {
	instr, err := wasm.ConstValue(expr)
	if err != nil {
		return nil, err
	}
	if e, ok := constant(instr); ok {
		return e, nil
	}
	if instr.Opcode == wasm.OpGlobalGet {
		return wast.GetGlobal{Global: wast.GlobalID(instr.Imm.(wasm.GlobalImm).GlobalIdx)}, nil
	}
	return nil, fmt.Errorf("unsupported constant expression opcode 0x%02x", instr.Opcode)
}

func constant(instr wasm.Instruction) (wast.Const, bool) {
	switch imm := instr.Imm.(type) {
	case wasm.I32Imm:
		return wast.I32Const(imm.Value), true
	case wasm.I64Imm:
		return wast.I64Const(imm.Value), true
	case wasm.F32Imm:
		return wast.F32Const(imm.Value), true
	case wasm.F64Imm:
		return wast.F64Const(imm.Value), true
	}
	return wast.Const{}, false
}
