package wasmexporter

import (
	"context"
	stderrors "errors"

	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter/java"
	"github.com/wippyai/wasm-exporter/lower"
	"github.com/wippyai/wasm-exporter/wasm"
	"github.com/wippyai/wasm-exporter/wast"
)

// Lower decodes a binary module and lowers every function body.
func Lower(data []byte) (*wast.Module, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return nil, err
		}
		return nil, errors.ParseFailed("module", err)
	}
	return lower.Module(m)
}

// ExportJava converts a binary module into one Java class.
func ExportJava(data []byte, cfg java.Config) (*java.Result, error) {
	return ExportJavaContext(context.Background(), data, cfg)
}

// ExportJavaContext is ExportJava with a context that can stop function
// emission early.
func ExportJavaContext(ctx context.Context, data []byte, cfg java.Config) (*java.Result, error) {
	m, err := Lower(data)
	if err != nil {
		return nil, err
	}
	return java.Dump(ctx, m, cfg)
}
