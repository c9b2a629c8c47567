package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	wasmexporter "github.com/wippyai/wasm-exporter"
	"github.com/wippyai/wasm-exporter/errors"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/exporter/java"
	"github.com/wippyai/wasm-exporter/lower"
)

type options struct {
	wasmFile    string
	watFile     string
	class       string
	pkg         string
	out         string
	workers     int
	list        bool
	interactive bool
	verbose     bool
	strict      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.wasmFile, "wasm", "", "Path to core wasm module")
	flag.StringVar(&opts.watFile, "wat", "", "Path to WAT source (requires cgo)")
	flag.StringVar(&opts.class, "class", "", "Java class name (default: derived from the input file)")
	flag.StringVar(&opts.pkg, "package", "", "Java package name")
	flag.StringVar(&opts.out, "out", "", "Output file (default: stdout)")
	flag.IntVar(&opts.workers, "workers", 1, "Functions emitted concurrently")
	flag.BoolVar(&opts.list, "list", false, "List imported and exported functions and exit")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opts.strict, "strict", false, "Exit with status 1 when emission reports faults")
	flag.Parse()

	if (opts.wasmFile == "") == (opts.watFile == "") {
		fmt.Fprintln(os.Stderr, "Usage: wasm2java -wasm <file.wasm> [-class Name] [-package p] [-out File.java]")
		fmt.Fprintln(os.Stderr, "       wasm2java -wat <file.wat> ...")
		fmt.Fprintln(os.Stderr, "       wasm2java -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       wasm2java -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()
	lower.SetLogger(logger.Named("lower"))
	exporter.SetLogger(logger.Named("exporter"))

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	input := opts.wasmFile
	if input == "" {
		input = opts.watFile
	}
	data, err := readInput(opts)
	if err != nil {
		return err
	}

	if opts.list {
		return list(ctx, os.Stdout, data)
	}

	cfg := java.Config{
		ClassName:   opts.class,
		PackageName: opts.pkg,
		Exporter:    exporter.Config{Workers: opts.workers, Debug: opts.verbose},
	}
	if cfg.ClassName == "" {
		cfg.ClassName = className(input)
	}

	if opts.interactive {
		return runInteractive(ctx, input, data, cfg)
	}

	res, err := wasmexporter.ExportJavaContext(ctx, data, cfg)
	if err != nil {
		return err
	}

	faults := res.Faults()
	for _, f := range faults {
		fmt.Fprintf(os.Stderr, "warning: %v\n", f)
	}
	if res.Unresolved != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", res.Unresolved)
	}

	if opts.out == "" {
		fmt.Print(res.Source)
	} else if err := os.WriteFile(opts.out, []byte(res.Source), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.strict && len(faults) > 0 {
		return fmt.Errorf("%d emission fault(s)", len(faults))
	}
	return nil
}

func readInput(opts options) ([]byte, error) {
	if opts.wasmFile != "" {
		data, err := os.ReadFile(opts.wasmFile)
		if err != nil {
			return nil, errors.Load("read "+opts.wasmFile, err)
		}
		return data, nil
	}

	src, err := os.ReadFile(opts.watFile)
	if err != nil {
		return nil, errors.Load("read "+opts.watFile, err)
	}
	data, err := watToWasm(string(src))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "compile "+opts.watFile)
	}
	return data, nil
}

// className derives a Java class name from an input path: "hello-world.wasm"
// becomes "Hello_world".
func className(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := []rune(exporter.Identifier(base))
	if unicode.IsLower(name[0]) {
		name[0] = unicode.ToUpper(name[0])
	}
	return string(name)
}
