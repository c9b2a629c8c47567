// Package errors provides structured error types for the wasm exporter.
//
// Errors are categorized by Phase (where in the pipeline the error occurred)
// and Kind (error category). The Error type carries the function being
// processed, a node path, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLower, errors.KindUnsupported).
//		Func("_memcpy").
//		Detail("opcode 0x%02x", op).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Malformed(fn, node)
//	err := errors.StubFailed("env", "___syscall5", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
