package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-exporter/errors"
)

// list validates data with wazero and prints its function imports and exports.
func list(ctx context.Context, w io.Writer, data []byte) error {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "compile module")
	}
	defer compiled.Close(ctx)

	fmt.Fprintf(w, "Module: %s\n", compiled.Name())

	imports := compiled.ImportedFunctions()
	fmt.Fprintf(w, "\nImported functions (%d):\n", len(imports))
	for _, def := range imports {
		module, name, _ := def.Import()
		fmt.Fprintf(w, "  %s.%s%s\n", module, name, signature(def))
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\nExported functions (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  %s%s\n", name, signature(exports[name]))
	}
	return nil
}

func signature(def api.FunctionDefinition) string {
	params := make([]string, len(def.ParamTypes()))
	for i, t := range def.ParamTypes() {
		params[i] = api.ValueTypeName(t)
	}
	s := "(" + strings.Join(params, ", ") + ")"
	if results := def.ResultTypes(); len(results) > 0 {
		names := make([]string, len(results))
		for i, t := range results {
			names[i] = api.ValueTypeName(t)
		}
		s += " -> " + strings.Join(names, ", ")
	}
	return s
}
