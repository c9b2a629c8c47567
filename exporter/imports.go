package exporter

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wast"
)

// SyscallPrefix is the import name prefix of numbered host system calls in
// the env namespace, e.g. env.___syscall146.
const SyscallPrefix = "___syscall"

// Syscall returns the call number encoded in a system-call import.
func Syscall(imp wast.Import) (int, bool) {
	if imp.Namespace != "env" || !strings.HasPrefix(imp.Name, SyscallPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(imp.Name, SyscallPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// StubWriter writes the complete definition of an imported function under
// name.
type StubWriter func(name string, fn *wast.Func, out *Buffer) error

// Handlers maps host imports to the writers that implement them.
type Handlers map[wast.Import]StubWriter

// Stub is the outcome of writing one import definition. When Err is set,
// Text holds whatever was written before the failure and the caller is
// expected to substitute a placeholder.
type Stub struct {
	Err     error
	Text    *Buffer
	Import  wast.Import
	Name    string
	Func    wast.FuncID
	Syscall int // -1 unless the import is a system call
}

// Failed reports whether writing the stub failed.
func (s *Stub) Failed() bool {
	return s.Err != nil
}

// Handle writes every imported function that has a handler, marking it
// handled, in module order.
func (x *Exporter) Handle(handlers Handlers) []Stub {
	var out []Stub
	for _, id := range x.mod.ImportedFuncs() {
		fn := &x.mod.Funcs[id]
		write, ok := handlers[*fn.Import]
		if !ok {
			continue
		}
		name, _ := x.ImportFunc(fn.Import.Namespace, fn.Import.Name)
		out = append(out, x.stub(id, name, write))
	}
	return out
}

// MissingSyscalls writes a stub for every system-call import that no handler
// resolved. Each stub gets its own call number.
func (x *Exporter) MissingSyscalls(write func(name string, fn *wast.Func, syscall int, out *Buffer) error) []Stub {
	var out []Stub
	for _, id := range x.mod.ImportedFuncs() {
		if x.FuncHandled(id) {
			continue
		}
		fn := &x.mod.Funcs[id]
		n, ok := Syscall(*fn.Import)
		if !ok {
			continue
		}
		name, _ := x.ImportFunc(fn.Import.Namespace, fn.Import.Name)
		s := x.stub(id, name, func(name string, fn *wast.Func, buf *Buffer) error {
			return write(name, fn, n, buf)
		})
		s.Syscall = n
		out = append(out, s)
	}
	return out
}

// Unresolved returns the imported functions that are still unhandled.
func (x *Exporter) Unresolved() []wast.FuncID {
	var out []wast.FuncID
	for _, id := range x.mod.ImportedFuncs() {
		if !x.FuncHandled(id) {
			out = append(out, id)
		}
	}
	return out
}

// UnresolvedError reports the unhandled function imports, or nil.
func (x *Exporter) UnresolvedError() error {
	ids := x.Unresolved()
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = x.mod.Funcs[id].Import.String()
	}
	return errors.NewUnresolvedImportsError(keys)
}

// stub runs write, converting a returned error or a panic into Stub.Err.
func (x *Exporter) stub(id wast.FuncID, name string, write StubWriter) (s Stub) {
	fn := &x.mod.Funcs[id]
	s = Stub{Func: id, Import: *fn.Import, Name: name, Syscall: -1, Text: &Buffer{}}

	defer func() {
		if r := recover(); r != nil {
			s.Err = errors.StubFailed(fn.Import.Namespace, fn.Import.Name, fmt.Errorf("panic: %v", r))
		}
		if s.Err != nil {
			Logger().Warn("stub failed",
				zap.String("import", fn.Import.String()),
				zap.Error(s.Err))
			return
		}
		Logger().Debug("stub written", zap.String("import", fn.Import.String()), zap.String("name", name))
	}()

	if err := write(name, fn, s.Text); err != nil {
		s.Err = errors.StubFailed(fn.Import.Namespace, fn.Import.Name, err)
	}
	return s
}
