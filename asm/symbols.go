package asm

import (
	"fmt"
	"math"
)

// symbolTable is pass 1's output: constants (evaluated immediately, in
// declaration order, from "name = value" lines) and labels (the
// address of the next emitted byte at the point "name:" appeared).
// Both are addressed by plain identifier; a name may not be declared
// as both.
type symbolTable struct {
	constants map[string]uint32
	labels    map[string]uint32
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		constants: make(map[string]uint32),
		labels:    make(map[string]uint32),
	}
}

func (t *symbolTable) defineConstant(name string, value uint32) error {
	if _, ok := t.constants[name]; ok {
		return fmt.Errorf("constant %q already defined", name)
	}
	if _, ok := t.labels[name]; ok {
		return fmt.Errorf("%q is already a label", name)
	}
	t.constants[name] = value
	return nil
}

func (t *symbolTable) defineLabel(name string, addr uint32) error {
	if _, ok := t.labels[name]; ok {
		return fmt.Errorf("label %q already defined", name)
	}
	if _, ok := t.constants[name]; ok {
		return fmt.Errorf("%q is already a constant", name)
	}
	t.labels[name] = addr
	return nil
}

// resolve evaluates an operand token that names a value: an integer or
// float literal, a declared constant, or a label address. Float
// literals are stored as their IEEE-754 bit pattern, matching how the
// register file carries float values (SPEC_FULL.md §4.1).
func (t *symbolTable) resolve(tok string) (uint32, error) {
	if looksLikeNumber(tok) {
		if isFloatLiteral(tok) {
			var f float64
			if _, err := fmt.Sscanf(tok, "%g", &f); err != nil {
				return 0, fmt.Errorf("not a float literal: %q", tok)
			}
			return math.Float32bits(float32(f)), nil
		}
		v, err := parseInt(tok)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	if v, ok := t.constants[tok]; ok {
		return v, nil
	}
	if v, ok := t.labels[tok]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("undefined symbol %q", tok)
}
