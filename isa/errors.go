package isa

import "errors"

// Sentinel errors for the codec and ALU. Callers wrap these with
// fmt.Errorf("...: %w", ErrX) to attach context, matching the teacher's
// convention in timing/latency/config.go.
var (
	// ErrDecodeError signals a word that does not name a known opcode.
	ErrDecodeError = errors.New("decode error")

	// ErrArithmeticError signals divide-by-zero or FTOI of NaN.
	ErrArithmeticError = errors.New("arithmetic error")
)
