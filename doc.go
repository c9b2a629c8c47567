// Package wasmexporter converts WebAssembly modules into Java source.
//
// The conversion runs in three stages, each in its own package:
//
//	wasmexporter/
//	├── wasm/            binary module decoder and name section
//	├── lower/           instruction stream to structured statement trees
//	├── wast/            the lowered tree: statements, expressions, handles
//	├── exporter/        target-independent code generation
//	│   └── java/        Java syntax and class assembly
//	├── errors/          structured errors with phase and kind
//	└── cmd/wasm2java/   command line front end
//
// # Quick Start
//
//	data, err := os.ReadFile("program.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := wasmexporter.ExportJava(data, java.Config{ClassName: "Program"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("Program.java", []byte(res.Source), 0o644)
//
// Emission never stops on a malformed tree. Check res.Faults() for the
// placeholders written into the output, and res.Unresolved for function
// imports that were replaced by throwing stubs.
//
// # Logging
//
// The lower and exporter packages log through zap and are silent by default.
// Install a logger with lower.SetLogger and exporter.SetLogger before
// exporting.
package wasmexporter
