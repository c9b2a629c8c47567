// Package java renders lowered WebAssembly modules as a single Java class.
//
// Syntax implements exporter.Syntax for Java. Dump completes the exporter
// with the class around the emitted methods: a little-endian ByteBuffer for
// linear memory, data segments decoded from base64 in the constructor, the
// function table, global fields, helper methods for operators Java has no
// expression for, invoke_<signature> dispatchers for indirect calls, host
// handlers and stubs for every remaining import.
//
// Imports named env.___syscallN that no handler covers become methods that
// throw with the call number, so the class always compiles.
package java
