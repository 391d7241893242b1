package asm

import "fmt"

// AssemblyError names a single source-level failure: a malformed
// mnemonic, an unresolved symbol, an operand that doesn't fit its
// field. Line is 1-based within the assembled source.
type AssemblyError struct {
	Line    int
	Message string
}

func (e AssemblyError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Errors collects every AssemblyError found in one Assemble call. The
// assembler never stops at the first failure (SPEC_FULL.md §4.6), so a
// caller sees every problem in one pass.
type Errors []AssemblyError

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no errors"
	case 1:
		return es[0].Error()
	default:
		s := fmt.Sprintf("%d assembly errors:", len(es))
		for _, e := range es {
			s += "\n  " + e.Error()
		}
		return s
	}
}
