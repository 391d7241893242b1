// Package main provides the entry point for SEIS.
// SEIS is a pedagogical 32-bit CPU architecture: an assembler and a
// cycle-accurate pipelined simulator.
//
// For the full CLIs, use: go run ./cmd/seis-asm and go run ./cmd/seis-sim
package main

import "fmt"

func main() {
	fmt.Println("SEIS - Simple, Extensible Instruction Set")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/seis-asm <source...> -o <binary>")
	fmt.Println("  go run ./cmd/seis-sim run <binary> [-config <path>] [-b]")
}
