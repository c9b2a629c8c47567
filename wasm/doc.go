// Package wasm decodes and encodes WebAssembly 1.0 binary modules.
//
// The decoder covers what the exporter can translate: numeric value
// types, functions, a funcref table, one linear memory, globals, active
// element segments, data segments and the "name" custom section. Modules
// using reference types, SIMD, GC or exception handling are rejected with
// a descriptive error rather than partially decoded.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Function bodies are kept as raw bytes; decode them on demand:
//
//	instrs, err := wasm.DecodeInstructions(module.Code[0].Code)
//
// # Encoding
//
// Encode builds a binary from a Module value. Tests use it together with
// EncodeInstructions to assemble small modules in memory:
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs: []uint32{0},
//	    Code: []wasm.FuncBody{{Code: wasm.EncodeInstructions([]wasm.Instruction{
//	        {Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 42}},
//	        {Opcode: wasm.OpEnd},
//	    })}},
//	}
//	data := m.Encode()
package wasm
