// Package exporter turns a lowered WebAssembly module into source text for an
// imperative target language.
//
// The package owns the target-independent half of code generation:
//
//   - NameAllocator and the module and function naming contexts, which map
//     integer handles to collision-free identifiers
//   - Emitter, which walks statement trees and reconstructs structured control
//     flow, reporting for every subtree which labels were branched to and
//     whether control can fall off its end
//   - phi bookkeeping for values that cross construct boundaries
//   - the import completeness pass, which gives every system-call import a
//     definition even when no host handler exists
//
// All target syntax comes from a Syntax implementation. See exporter/java.
//
// # Faults
//
// Rendering never stops on malformed input. A node that cannot be rendered
// becomes a visible placeholder in the output and an *errors.Error with
// phase "emit" in FuncContext.Faults.
//
// # Concurrency
//
// Names are allocated for every function and global when an Exporter is
// created, so EmitFuncs produces the same text for any Config.Workers.
package exporter
