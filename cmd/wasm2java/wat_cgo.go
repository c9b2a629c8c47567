//go:build cgo

package main

import "github.com/bytecodealliance/wasmtime-go"

func watToWasm(src string) ([]byte, error) {
	return wasmtime.Wat2Wasm(src)
}
