package exporter

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wast"
)

// Config controls function emission.
type Config struct {
	// Workers is the number of functions emitted concurrently. Values below
	// one mean one.
	Workers int
	// Debug logs the reachability decision of every block and loop.
	Debug bool
}

// Exporter emits the functions of one module through a Syntax. Every
// function and global is named when the Exporter is created, so the output
// does not depend on Workers.
type Exporter struct {
	mod             *wast.Module
	syn             Syntax
	ctx             *ModuleContext
	funcsByImport   map[wast.Import]wast.FuncID
	globalsByImport map[wast.Import]wast.GlobalID
	handledFuncs    map[wast.FuncID]struct{}
	handledGlobals  map[wast.GlobalID]struct{}
	cfg             Config
	mu              sync.Mutex
}

// New returns an Exporter for m.
func New(m *wast.Module, syn Syntax, cfg Config) *Exporter {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	x := &Exporter{
		mod:             m,
		syn:             syn,
		cfg:             cfg,
		ctx:             NewModuleContext(m, syn),
		funcsByImport:   make(map[wast.Import]wast.FuncID),
		globalsByImport: make(map[wast.Import]wast.GlobalID),
		handledFuncs:    make(map[wast.FuncID]struct{}),
		handledGlobals:  make(map[wast.GlobalID]struct{}),
	}
	for i := range m.Funcs {
		if imp := m.Funcs[i].Import; imp != nil {
			x.funcsByImport[*imp] = wast.FuncID(i)
		}
	}
	for i := range m.Globals {
		if imp := m.Globals[i].Import; imp != nil {
			x.globalsByImport[*imp] = wast.GlobalID(i)
		}
	}
	x.ctx.AllocateAll()
	return x
}

// Module returns the module being exported.
func (x *Exporter) Module() *wast.Module {
	return x.mod
}

// Context returns the module naming context.
func (x *Exporter) Context() *ModuleContext {
	return x.ctx
}

// Syntax returns the syntax the exporter renders with.
func (x *Exporter) Syntax() Syntax {
	return x.syn
}

// ImportFunc returns the name chosen for the function imported as
// namespace.name and marks the import as handled.
func (x *Exporter) ImportFunc(namespace, name string) (string, bool) {
	id, ok := x.funcsByImport[wast.Import{Namespace: namespace, Name: name}]
	if !ok {
		return "", false
	}
	x.mu.Lock()
	x.handledFuncs[id] = struct{}{}
	x.mu.Unlock()
	return x.ctx.FuncName(id), true
}

// ImportGlobal returns the name chosen for the global imported as
// namespace.name and marks the import as handled.
func (x *Exporter) ImportGlobal(namespace, name string) (string, bool) {
	id, ok := x.globalsByImport[wast.Import{Namespace: namespace, Name: name}]
	if !ok {
		return "", false
	}
	x.mu.Lock()
	x.handledGlobals[id] = struct{}{}
	x.mu.Unlock()
	return x.ctx.GlobalName(id), true
}

// FuncHandled reports whether an imported function has been resolved.
func (x *Exporter) FuncHandled(id wast.FuncID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.handledFuncs[id]
	return ok
}

// GlobalHandled reports whether an imported global has been resolved.
func (x *Exporter) GlobalHandled(id wast.GlobalID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.handledGlobals[id]
	return ok
}

// Function is the emitted body of one defined function.
type Function struct {
	Func    *wast.Func
	Context *FuncContext
	Body    *Buffer
	Name    string
	ID      wast.FuncID
	// Unreachable is set when control cannot fall off the end of Body.
	Unreachable bool
}

// EmitFunc emits the body of a defined function.
func (x *Exporter) EmitFunc(id wast.FuncID) (*Function, error) {
	if int(id) < 0 || int(id) >= len(x.mod.Funcs) {
		return nil, errors.OutOfBounds(errors.PhaseEmit, []string{"func"}, int(id), len(x.mod.Funcs))
	}
	fn := &x.mod.Funcs[id]
	if fn.Imported() {
		return nil, errors.InvalidInput(errors.PhaseEmit, "function "+fn.Name+" is imported")
	}

	ctx := NewFuncContext(x.ctx, fn, x.syn)
	em := NewEmitter(x.syn, ctx)
	em.debug = x.cfg.Debug

	out := &Buffer{}
	var body wast.Stm = wast.Nop{}
	if fn.Body != nil {
		body = fn.Body
	}
	res := em.Stm(body, out)

	Logger().Debug("emitted function",
		zap.String("func", fn.Name),
		zap.Int("lines", out.Len()),
		zap.Int("faults", len(ctx.Faults())),
		zap.Bool("unreachable", res.Unreachable))

	return &Function{
		ID:          id,
		Name:        x.ctx.FuncName(id),
		Func:        fn,
		Context:     ctx,
		Body:        out,
		Unreachable: res.Unreachable,
	}, nil
}

// Output is the emission of every defined function in module order.
type Output struct {
	Funcs []*Function
}

// EmitFuncs emits every defined function using cfg.Workers goroutines.
func (x *Exporter) EmitFuncs(ctx context.Context) (*Output, error) {
	var ids []wast.FuncID
	for i := range x.mod.Funcs {
		if !x.mod.Funcs[i].Imported() {
			ids = append(ids, wast.FuncID(i))
		}
	}

	funcs := make([]*Function, len(ids))
	errs := make([]error, len(ids))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < x.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				funcs[i], errs[i] = x.EmitFunc(ids[i])
			}
		}()
	}

	var cancelled error
feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, cancelled, "emission cancelled")
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Output{Funcs: funcs}, nil
}

// Faults returns every fault recorded while emitting, in module order.
func (o *Output) Faults() []error {
	var out []error
	for _, f := range o.Funcs {
		out = append(out, f.Context.Faults()...)
	}
	return out
}

// Intrinsics returns the union of operators rendered in intrinsic form.
func (o *Output) Intrinsics() []wast.Op {
	seen := make(map[wast.Op]struct{})
	var out []wast.Op
	for _, f := range o.Funcs {
		for _, op := range f.Context.Intrinsics() {
			if _, ok := seen[op]; !ok {
				seen[op] = struct{}{}
				out = append(out, op)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Signatures returns every indirect-call signature in use, ordered by key.
func (o *Output) Signatures() []wast.Signature {
	byKey := make(map[string]wast.Signature)
	for _, f := range o.Funcs {
		for k, sig := range f.Context.Signatures() {
			byKey[k] = sig
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]wast.Signature, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}
