package exporter

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/wast"
)

func reservedNames(syn Syntax) []string {
	reserved := append([]string(nil), syn.ReservedWords()...)
	for _, t := range wast.ValueTypes {
		reserved = append(reserved, syn.PhiName(t))
	}
	return reserved
}

// ModuleContext names functions and globals from one allocator shared by the
// whole module. It is safe for concurrent use.
type ModuleContext struct {
	mod     *wast.Module
	names   *NameAllocator
	funcs   []string
	globals []string
	mu      sync.Mutex
}

// NewModuleContext returns a context for m with no names assigned yet.
func NewModuleContext(m *wast.Module, syn Syntax) *ModuleContext {
	return &ModuleContext{
		mod:     m,
		names:   NewNameAllocator(reservedNames(syn), syn.Identifier),
		funcs:   make([]string, len(m.Funcs)),
		globals: make([]string, len(m.Globals)),
	}
}

// Module returns the module being named.
func (c *ModuleContext) Module() *wast.Module {
	return c.mod
}

// AllocateAll names every function and then every global in module order, so
// later lookups never depend on emission order.
func (c *ModuleContext) AllocateAll() {
	for i := range c.funcs {
		c.FuncName(wast.FuncID(i))
	}
	for i := range c.globals {
		c.GlobalName(wast.GlobalID(i))
	}
}

// FuncName returns the name of a function, allocating it on first use.
// It returns "" for a handle outside the module.
func (c *ModuleContext) FuncName(id wast.FuncID) string {
	if int(id) < 0 || int(id) >= len(c.funcs) {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.funcs[id] == "" {
		c.funcs[id] = c.names.Allocate(c.mod.Funcs[id].Name)
	}
	return c.funcs[id]
}

// GlobalName returns the name of a global, allocating it on first use.
// It returns "" for a handle outside the module.
func (c *ModuleContext) GlobalName(id wast.GlobalID) string {
	if int(id) < 0 || int(id) >= len(c.globals) {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.globals[id] == "" {
		c.globals[id] = c.names.Allocate(c.mod.Globals[id].Name)
	}
	return c.globals[id]
}

// FuncContext holds the naming and bookkeeping of one function emission.
// It is owned by a single goroutine.
type FuncContext struct {
	Module     *ModuleContext
	Func       *wast.Func
	syn        Syntax
	names      *NameAllocator
	locals     []string
	labels     []string
	phis       map[wast.Type]struct{}
	intrinsics map[wast.Op]struct{}
	signatures map[string]wast.Signature
	faults     []error
}

// NewFuncContext returns a context for fn. Locals are named up front in
// declaration order so parameters keep their source names.
func NewFuncContext(mc *ModuleContext, fn *wast.Func, syn Syntax) *FuncContext {
	c := &FuncContext{
		Module:     mc,
		Func:       fn,
		syn:        syn,
		names:      NewNameAllocator(reservedNames(syn), syn.Identifier),
		locals:     make([]string, len(fn.Locals)),
		labels:     make([]string, len(fn.Labels)),
		phis:       make(map[wast.Type]struct{}),
		intrinsics: make(map[wast.Op]struct{}),
		signatures: make(map[string]wast.Signature),
	}
	for i := range c.locals {
		c.LocalName(wast.LocalID(i))
	}
	return c
}

// LocalName returns the name of a local. Unknown handles yield "".
func (c *FuncContext) LocalName(id wast.LocalID) string {
	if int(id) < 0 || int(id) >= len(c.locals) {
		return ""
	}
	if c.locals[id] == "" {
		c.locals[id] = c.names.Allocate(c.Func.Locals[id].Name)
	}
	return c.locals[id]
}

// LabelName returns the name of a label. Unknown handles yield "".
func (c *FuncContext) LabelName(id wast.LabelID) string {
	if int(id) < 0 || int(id) >= len(c.labels) {
		return ""
	}
	if c.labels[id] == "" {
		c.labels[id] = c.names.Allocate(c.Func.Labels[id].Name)
	}
	return c.labels[id]
}

// Label returns the label definition behind id.
func (c *FuncContext) Label(id wast.LabelID) (wast.Label, bool) {
	if int(id) < 0 || int(id) >= len(c.Func.Labels) {
		return wast.Label{}, false
	}
	return c.Func.Labels[id], true
}

// GlobalName resolves a global through the module context.
func (c *FuncContext) GlobalName(id wast.GlobalID) string {
	return c.Module.GlobalName(id)
}

// UsePhi records that the phi variable of type t must be declared and
// returns its name.
func (c *FuncContext) UsePhi(t wast.Type) string {
	c.phis[t] = struct{}{}
	return c.syn.PhiName(t)
}

// PhiTypes returns the phi types in use, in ValueTypes order.
func (c *FuncContext) PhiTypes() []wast.Type {
	var out []wast.Type
	for _, t := range wast.ValueTypes {
		if _, ok := c.phis[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// UseIntrinsic records an operator rendered in intrinsic form.
func (c *FuncContext) UseIntrinsic(op wast.Op) {
	c.intrinsics[op] = struct{}{}
}

// Intrinsics returns the recorded operators in ascending opcode order.
func (c *FuncContext) Intrinsics() []wast.Op {
	out := make([]wast.Op, 0, len(c.intrinsics))
	for op := range c.intrinsics {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UseSignature records a signature reached through an indirect call.
func (c *FuncContext) UseSignature(sig wast.Signature) {
	c.signatures[sig.Key()] = sig
}

// Signatures returns the recorded indirect-call signatures keyed by Signature.Key.
func (c *FuncContext) Signatures() map[string]wast.Signature {
	return c.signatures
}

// Fault records a rendering problem. The emitter keeps going after a fault.
func (c *FuncContext) Fault(kind errors.Kind, value any, format string, args ...any) {
	err := errors.New(errors.PhaseEmit, kind).
		Func(c.Func.Name).
		Value(value).
		Detail(format, args...).
		Build()
	Logger().Warn("emission fault", zap.String("func", c.Func.Name), zap.Error(err))
	c.faults = append(c.faults, err)
}

// Faults returns the recorded faults in emission order.
func (c *FuncContext) Faults() []error {
	return c.faults
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T%+v", v, v)
}
