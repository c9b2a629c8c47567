//go:build !cgo

package main

import "fmt"

func watToWasm(string) ([]byte, error) {
	return nil, fmt.Errorf("-wat needs a cgo build; convert the file to .wasm first")
}
