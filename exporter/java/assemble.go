package java

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/wast"
)

// dataChunk bounds the bytes per base64 literal so each literal stays
// below the class-file constant limit.
const dataChunk = 16 << 10

// Config is the generation-time configuration of one Java class.
type Config struct {
	// ClassName is the name of the generated class. Required.
	ClassName string
	// PackageName is the optional package declaration.
	PackageName string
	Exporter    exporter.Config
	// Handlers implements host functions. Nil means DefaultHandlers.
	Handlers exporter.Handlers
	// Globals holds Java initializer expressions for imported globals. Nil
	// means DefaultGlobals.
	Globals map[wast.Import]string
}

// DefaultGlobals returns initializers for the globals emscripten imports.
func DefaultGlobals() map[wast.Import]string {
	return map[wast.Import]string{
		{Namespace: "global", Name: "NaN"}:      "Double.NaN",
		{Namespace: "global", Name: "Infinity"}: "Double.POSITIVE_INFINITY",
	}
}

// Result is an assembled class.
type Result struct {
	Output *exporter.Output
	// Unresolved is an *errors.UnresolvedImportsError when some function
	// import had neither a handler nor a system-call stub.
	Unresolved error
	Source     string
	Stubs      []exporter.Stub
}

// Faults returns the emission faults followed by the stub failures.
func (r *Result) Faults() []error {
	out := r.Output.Faults()
	for i := range r.Stubs {
		if r.Stubs[i].Failed() {
			out = append(out, r.Stubs[i].Err)
		}
	}
	return out
}

func (r *Result) String() string {
	return r.Source
}

// Exporter assembles a module into one Java class.
type Exporter struct {
	x   *exporter.Exporter
	cfg Config
}

// New returns a Java exporter for m.
func New(m *wast.Module, cfg Config) (*Exporter, error) {
	if cfg.ClassName == "" {
		return nil, errors.InvalidInput(errors.PhaseAssemble, "class name is required")
	}
	if cfg.ClassName != exporter.Identifier(cfg.ClassName) {
		return nil, errors.InvalidInput(errors.PhaseAssemble, "invalid class name "+strconv.Quote(cfg.ClassName))
	}
	if mem := m.Memory; mem != nil && mem.Pages > MaxPages {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Path("memory").
			Value(mem.Pages).
			Detail("initial memory exceeds %d pages", MaxPages).
			Build()
	}
	if cfg.Handlers == nil {
		cfg.Handlers = DefaultHandlers()
	}
	if cfg.Globals == nil {
		cfg.Globals = DefaultGlobals()
	}
	return &Exporter{x: exporter.New(m, Syntax{}, cfg.Exporter), cfg: cfg}, nil
}

// Dump exports m as a Java class.
func Dump(ctx context.Context, m *wast.Module, cfg Config) (*Result, error) {
	e, err := New(m, cfg)
	if err != nil {
		return nil, err
	}
	return e.Dump(ctx)
}

// Dump emits every function and assembles the class. Emission faults do not
// fail the call; they are reported through Result.Faults.
func (e *Exporter) Dump(ctx context.Context) (*Result, error) {
	out, err := e.x.EmitFuncs(ctx)
	if err != nil {
		return nil, err
	}

	stubs := e.x.Handle(e.cfg.Handlers)
	stubs = append(stubs, e.x.MissingSyscalls(missingSyscall)...)
	unresolved := e.x.UnresolvedError()

	a := &assembler{
		mod:  e.x.Module(),
		mc:   e.x.Context(),
		x:    e.x,
		cfg:  e.cfg,
		out:  &exporter.Buffer{},
		init: exporter.NewEmitter(Syntax{}, exporter.NewFuncContext(e.x.Context(), &wast.Func{Name: "<init>"}, Syntax{})),
	}
	a.header()
	a.fields()
	a.constructor()
	a.memoryHelpers()
	a.todoHelpers()
	a.intrinsics(out.Intrinsics())
	a.invokers(out.Signatures())
	for _, fn := range out.Funcs {
		a.function(fn)
	}
	a.stubs(stubs)
	a.unresolved()
	a.out.Line("}")

	if faults := a.init.Context().Faults(); len(faults) > 0 {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindMalformed, faults[0], "module initializer")
	}

	res := &Result{
		Source:     a.out.String(),
		Output:     out,
		Stubs:      stubs,
		Unresolved: unresolved,
	}
	exporter.Logger().Info("assembled java class",
		zap.String("class", e.cfg.ClassName),
		zap.Int("functions", len(out.Funcs)),
		zap.Int("stubs", len(stubs)),
		zap.Int("faults", len(res.Faults())))
	return res, nil
}

type assembler struct {
	mod  *wast.Module
	mc   *exporter.ModuleContext
	x    *exporter.Exporter
	out  *exporter.Buffer
	init *exporter.Emitter
	cfg  Config
}

func (a *assembler) header() {
	if a.cfg.PackageName != "" {
		a.out.Line("package " + a.cfg.PackageName + ";")
		a.out.Line("")
	}
	a.out.Line("@SuppressWarnings(\"all\")")
	a.out.Line("public class " + a.cfg.ClassName + " {")
}

// MaxPages is the largest memory a ByteBuffer can hold: its capacity is an
// int, so 32768 pages would overflow.
const MaxPages = 32767

func (a *assembler) fields() {
	pages, max := uint32(0), uint32(MaxPages)
	if mem := a.mod.Memory; mem != nil {
		pages = mem.Pages
		if mem.Max != nil && *mem.Max < max {
			max = *mem.Max
		}
	}
	a.out.Line("private static final int PAGE_SIZE = 65536;")
	a.out.Linef("private static final int MAX_PAGES = %d;", max)
	a.out.Linef("private java.nio.ByteBuffer memory = java.nio.ByteBuffer.allocate(%d * PAGE_SIZE).order(java.nio.ByteOrder.LITTLE_ENDIAN);", pages)
	if t := a.mod.Table; t != nil {
		a.out.Linef("private int[] table = new int[%d];", t.Size)
	}
	for i := range a.mod.Globals {
		g := &a.mod.Globals[i]
		a.out.Line("private " + Type(g.Type) + " " + a.mc.GlobalName(wast.GlobalID(i)) + ";")
	}
	a.out.Line("")
}

func (a *assembler) constructor() {
	a.out.Block("public "+a.cfg.ClassName+"() {", "}", func() {
		for i := range a.mod.Globals {
			a.global(wast.GlobalID(i))
		}
		if a.mod.Table != nil {
			a.out.Line("java.util.Arrays.fill(this.table, -1);")
			for _, seg := range a.mod.Table.Segments {
				a.segment(seg)
			}
		}
		for _, d := range a.mod.Data {
			a.data(d)
		}
		if a.mod.Start != nil {
			a.out.Line(Syntax{}.Call(a.mc.FuncName(*a.mod.Start), nil) + ";")
		}
	})
	a.out.Line("")
}

func (a *assembler) global(id wast.GlobalID) {
	g := &a.mod.Globals[id]
	name := a.mc.GlobalName(id)
	switch {
	case g.Import != nil:
		init, ok := a.cfg.Globals[*g.Import]
		if !ok {
			a.out.Line("// unresolved import " + g.Import.String())
			init = Zero(g.Type)
		} else {
			a.x.ImportGlobal(g.Import.Namespace, g.Import.Name)
		}
		if g.Type != wast.F64 {
			init = "(" + Type(g.Type) + ") (" + init + ")"
		}
		a.out.Line(Syntax{}.SetGlobal(name, init))
	case g.Init != nil:
		a.out.Line(Syntax{}.SetGlobal(name, a.init.Expr(g.Init)))
	}
}

func (a *assembler) segment(seg wast.Segment) {
	if len(seg.Funcs) == 0 {
		return
	}
	ids := make([]string, len(seg.Funcs))
	for i, f := range seg.Funcs {
		ids[i] = strconv.Itoa(int(f))
	}
	a.out.Linef("System.arraycopy(new int[] {%s}, 0, this.table, %s, %d);",
		strings.Join(ids, ", "), a.init.Expr(seg.Offset), len(ids))
}

func (a *assembler) data(d wast.DataSegment) {
	offset := a.init.Expr(d.Offset)
	for start := 0; start < len(d.Data); start += dataChunk {
		end := min(start+dataChunk, len(d.Data))
		addr := offset
		if start > 0 {
			addr = "(" + offset + ") + " + strconv.Itoa(start)
		}
		a.out.Linef("this.putBytes(%s, %s);", addr, javaString(base64.StdEncoding.EncodeToString(d.Data[start:end])))
	}
}

var accessors = []struct{ name, typ, get, put string }{
	{"Byte", "byte", "get", "put"},
	{"Short", "short", "getShort", "putShort"},
	{"Int", "int", "getInt", "putInt"},
	{"Long", "long", "getLong", "putLong"},
	{"Float", "float", "getFloat", "putFloat"},
	{"Double", "double", "getDouble", "putDouble"},
}

func (a *assembler) memoryHelpers() {
	for _, acc := range accessors {
		a.out.Linef("private %s get%s(int addr) { return this.memory.%s(addr); }", acc.typ, acc.name, acc.get)
		a.out.Linef("private void put%s(int addr, %s value) { this.memory.%s(addr, value); }", acc.name, acc.typ, acc.put)
	}
	a.out.Block("private void putBytes(int addr, String data) {", "}", func() {
		a.out.Line("byte[] bytes = java.util.Base64.getDecoder().decode(data);")
		a.out.Line("for (int i = 0; i < bytes.length; i++) this.memory.put(addr + i, bytes[i]);")
	})
	a.out.Line("")
}

func (a *assembler) todoHelpers() {
	a.out.Line("private static void TODO(String message) { throw new RuntimeException(message); }")
	for _, t := range wast.ValueTypes {
		a.out.Linef("private static %s %s(String message) { throw new RuntimeException(message); }", Type(t), todo(t))
	}
	a.out.Line("")
}

func (a *assembler) intrinsics(ops []wast.Op) {
	for _, op := range ops {
		a.out.Line(Helper(op))
		a.out.Line("")
	}
}

// invokers writes one dispatch method per indirect-call signature over the
// table entries whose function has that signature.
func (a *assembler) invokers(sigs []wast.Signature) {
	for _, sig := range sigs {
		params := []string{"int addr"}
		args := make([]string, len(sig.Params))
		for i, t := range sig.Params {
			args[i] = "a" + strconv.Itoa(i)
			params = append(params, Type(t)+" "+args[i])
		}
		header := "private " + Type(sig.Result) + " " + invokeName(sig) + "(" + strings.Join(params, ", ") + ") {"
		a.out.Block(header, "}", func() {
			if a.mod.Table == nil {
				a.out.Line("throw new RuntimeException(\"no table\");")
				return
			}
			a.out.Block("switch (this.table[addr]) {", "}", func() {
				for _, id := range a.tableFuncs(sig) {
					call := Syntax{}.Call(a.mc.FuncName(id), args)
					if sig.Result == wast.Void {
						a.out.Line("case " + strconv.Itoa(int(id)) + ": " + call + "; return;")
					} else {
						a.out.Line("case " + strconv.Itoa(int(id)) + ": return " + call + ";")
					}
				}
				a.out.Line("default: throw new RuntimeException(\"indirect call type mismatch\");")
			})
		})
		a.out.Line("")
	}
}

func (a *assembler) tableFuncs(sig wast.Signature) []wast.FuncID {
	key := sig.Key()
	seen := make(map[wast.FuncID]struct{})
	var out []wast.FuncID
	for _, seg := range a.mod.Table.Segments {
		for _, id := range seg.Funcs {
			if int(id) < 0 || int(id) >= len(a.mod.Funcs) || a.mod.Funcs[id].Sig.Key() != key {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

func (a *assembler) function(fn *exporter.Function) {
	ctx := fn.Context
	params := make([]string, len(fn.Func.Sig.Params))
	for i, t := range fn.Func.Sig.Params {
		params[i] = Type(t) + " " + ctx.LocalName(wast.LocalID(i))
	}
	visibility := "private"
	if len(fn.Func.Exports) > 0 {
		visibility = "public"
	}
	header := visibility + " " + Type(fn.Func.Sig.Result) + " " + fn.Name + "(" + strings.Join(params, ", ") + ") {"
	a.out.Block(header, "}", func() {
		for i := len(params); i < len(fn.Func.Locals); i++ {
			l := fn.Func.Locals[i]
			a.out.Line(Type(l.Type) + " " + ctx.LocalName(wast.LocalID(i)) + " = " + Zero(l.Type) + ";")
		}
		for _, t := range ctx.PhiTypes() {
			a.out.Line(Type(t) + " " + ctx.UsePhi(t) + " = " + Zero(t) + ";")
		}
		a.out.Append(fn.Body)
		if !fn.Unreachable && fn.Func.Sig.Result != wast.Void {
			a.out.Line("throw new RuntimeException(\"missing return\");")
		}
	})
	a.out.Line("")
}

func (a *assembler) stubs(stubs []exporter.Stub) {
	for i := range stubs {
		s := &stubs[i]
		if s.Failed() {
			fn := &a.mod.Funcs[s.Func]
			a.out.Line("// " + s.Err.Error())
			a.throwing(s.Name, fn, "stub failed for "+s.Import.String())
		} else {
			a.out.Append(s.Text)
		}
		a.out.Line("")
	}
}

// unresolved gives every import still unhandled a method that throws.
func (a *assembler) unresolved() {
	for _, id := range a.x.Unresolved() {
		fn := &a.mod.Funcs[id]
		a.throwing(a.mc.FuncName(id), fn, "unresolved import "+fn.Import.String())
		a.out.Line("")
	}
}

func (a *assembler) throwing(name string, fn *wast.Func, message string) {
	a.out.Line("private " + Type(fn.Sig.Result) + " " + name + "(" + declareParams(fn) + ") {")
	a.out.Line("throw new UnsupportedOperationException(" + javaString(message) + ");")
	a.out.Line("}")
}
