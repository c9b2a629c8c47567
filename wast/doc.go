// Package wast defines the lowered WebAssembly tree consumed by the exporter.
//
// A Module holds functions, globals, the linear memory and the function
// table. Each defined function carries a structured statement tree (Stm)
// whose expressions (Expr) are side-effect ordered: every value that
// crossed a statement boundary on the WebAssembly stack has already been
// spilled into a local or, across construct exits, into a phi slot.
//
// Locals, labels, globals and functions are referenced by integer handles
// into the owning table. Two labels with the same Name are distinct
// because their handles differ.
package wast
