package asm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/seis/isa"
)

var controlMnemonics = map[string]isa.ControlOp{
	"NOP": isa.Nop, "HALT": isa.Halt, "JMP": isa.Jmp, "JSR": isa.Jsr, "RET": isa.Ret,
	"JEQ": isa.Jeq, "JNE": isa.Jne, "JGT": isa.Jgt, "JLT": isa.Jlt, "JGE": isa.Jge, "JLE": isa.Jle,
}

var integerMnemonics = map[string]isa.IntegerOp{
	"ADD": isa.Add, "SUB": isa.Sub, "MUL": isa.Mul, "DVU": isa.Dvu, "DVS": isa.Dvs,
	"MOD": isa.Mod, "AND": isa.And, "IOR": isa.Ior, "XOR": isa.Xor, "NOT": isa.Not,
	"SXT": isa.Sxt, "BSL": isa.Bsl, "BSR": isa.Bsr, "ASR": isa.Asr, "ROL": isa.Rol, "ROR": isa.Ror,
	"TST": isa.Tst,
}

var floatMnemonics = map[string]isa.FloatOp{
	"FADD": isa.Fadd, "FSUB": isa.Fsub, "FMUL": isa.Fmul, "FDIV": isa.Fdiv, "FMOD": isa.Fmod,
	"FCMP": isa.Fcmp, "FNEG": isa.Fneg, "FREC": isa.Frec, "ITOF": isa.Itof, "FTOI": isa.Ftoi,
	"FCHK": isa.Fchk,
}

var registerMnemonics = map[string]isa.RegisterOp{
	"PUSH": isa.Push, "POP": isa.Pop, "LBR": isa.Lbr, "SBR": isa.Sbr,
	"LSR": isa.Lsr, "SSR": isa.Ssr, "LLR": isa.Llr, "SLR": isa.Slr,
	"TFR": isa.Tfr, "LDR": isa.Ldr,
}

// parseInstruction parses one instruction statement (mnemonic already
// split off) into its encoded word(s). curAddr is the address this
// instruction will be emitted at, needed to turn a label operand on a
// relative branch into a word offset.
func parseInstruction(mnemonic, rest string, syms *symbolTable, curAddr uint32) ([]uint32, error) {
	switch {
	case mnemonic == "CMP" || mnemonic == "CMPS":
		return parseCmp(mnemonic, rest)
	case mnemonic == "LOAD":
		return parseLoad(rest, syms)
	}
	if _, ok := controlMnemonics[mnemonic]; ok {
		return parseControl(mnemonic, rest, syms, curAddr)
	}
	if _, ok := integerMnemonics[mnemonic]; ok {
		return parseIntegerArith(mnemonic, rest)
	}
	if _, ok := floatMnemonics[mnemonic]; ok {
		return parseFloatArith(mnemonic, rest)
	}
	if _, ok := registerMnemonics[mnemonic]; ok {
		return parseRegisterClass(mnemonic, rest)
	}
	return nil, fmt.Errorf("unknown mnemonic %q", mnemonic)
}

func parseControl(mnemonic, rest string, syms *symbolTable, curAddr uint32) ([]uint32, error) {
	op, ok := controlMnemonics[mnemonic]
	if !ok {
		return nil, fmt.Errorf("unknown control mnemonic %q", mnemonic)
	}
	in := &isa.Instruction{Opty: isa.OptyControl, ControlOp: op}
	if !op.HasJumpTarget() {
		return []uint32{isa.Encode(in)}, nil
	}

	operand := strings.TrimSpace(rest)
	if operand == "" {
		return nil, fmt.Errorf("%s requires a jump target", mnemonic)
	}
	if r, ok := isa.LookupReg(operand); ok {
		in.Jump = isa.Jump{Kind: isa.JumpRegister, Target: r}
		return []uint32{isa.Encode(in)}, nil
	}
	if looksLikeNumber(operand) {
		v, err := parseInt(operand)
		if err != nil {
			return nil, err
		}
		in.Jump = isa.Jump{Kind: isa.JumpRelative, Offset: int32(v)}
		return []uint32{isa.Encode(in)}, nil
	}
	target, err := syms.resolve(operand)
	if err != nil {
		return nil, err
	}
	in.Jump = isa.Jump{Kind: isa.JumpRelative, Offset: int32(target) - int32(curAddr)}
	return []uint32{isa.Encode(in)}, nil
}

func parseCmp(mnemonic, rest string) ([]uint32, error) {
	ops := trimOperands(rest)
	if len(ops) != 2 {
		return nil, fmt.Errorf("%s takes two registers, got %q", mnemonic, rest)
	}
	a, err := parseReg(ops[0])
	if err != nil {
		return nil, err
	}
	b, err := parseReg(ops[1])
	if err != nil {
		return nil, err
	}
	in := &isa.Instruction{
		Opty: isa.OptyInteger, IntOp: isa.Cmp, Signed: mnemonic == "CMPS", A: a, B: b,
	}
	return []uint32{isa.Encode(in)}, nil
}

func parseIntegerArith(mnemonic, rest string) ([]uint32, error) {
	op, ok := integerMnemonics[mnemonic]
	if !ok {
		return nil, fmt.Errorf("unknown integer mnemonic %q", mnemonic)
	}

	switch op.Shape() {
	case isa.ShapeBinary:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"left,right => dest\"", mnemonic)
		}
		ops := trimOperands(lhs)
		if len(ops) != 2 {
			return nil, fmt.Errorf("%s takes two source registers, got %q", mnemonic, lhs)
		}
		a, err := parseReg(ops[0])
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}

		if strings.HasPrefix(ops[1], "#") {
			v, err := parseInt(ops[1][1:])
			if err != nil {
				return nil, fmt.Errorf("%s immediate operand: %w", mnemonic, err)
			}
			if v < 0 || v > 0x1FFF {
				return nil, fmt.Errorf("%s immediate %d out of 13-bit range", mnemonic, v)
			}
			in := &isa.Instruction{
				Opty: isa.OptyInteger, IntOp: op, A: a,
				ImmediateForm: true, ImmVal: uint32(v), Dest: dest,
			}
			return []uint32{isa.Encode(in)}, nil
		}

		b, err := parseReg(ops[1])
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: op, A: a, B: b, Dest: dest}
		return []uint32{isa.Encode(in)}, nil

	case isa.ShapeUnary:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"src => dest\"", mnemonic)
		}
		a, err := parseReg(lhs)
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: op, A: a, Dest: dest}
		return []uint32{isa.Encode(in)}, nil

	case isa.ShapeSignExtend:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"src,width => dest\"", mnemonic)
		}
		ops := trimOperands(lhs)
		if len(ops) != 2 {
			return nil, fmt.Errorf("%s takes a source register and a width, got %q", mnemonic, lhs)
		}
		a, err := parseReg(ops[0])
		if err != nil {
			return nil, err
		}
		width, err := parseInt(ops[1])
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: op, A: a, Dest: dest, FromWidth: uint8(width)}
		return []uint32{isa.Encode(in)}, nil

	case isa.ShapeTest:
		reg, err := parseReg(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: op, A: reg}
		return []uint32{isa.Encode(in)}, nil
	}
	return nil, fmt.Errorf("unhandled shape for %s", mnemonic)
}

func parseFloatArith(mnemonic, rest string) ([]uint32, error) {
	op, ok := floatMnemonics[mnemonic]
	if !ok {
		return nil, fmt.Errorf("unknown float mnemonic %q", mnemonic)
	}

	switch op.Shape() {
	case isa.FShapeBinary:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"left,right => dest\"", mnemonic)
		}
		ops := trimOperands(lhs)
		if len(ops) != 2 {
			return nil, fmt.Errorf("%s takes two source registers, got %q", mnemonic, lhs)
		}
		a, err := parseReg(ops[0])
		if err != nil {
			return nil, err
		}
		b, err := parseReg(ops[1])
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyFloat, FloatOp: op, A: a, B: b, Dest: dest}
		return []uint32{isa.Encode(in)}, nil

	case isa.FShapeUnary, isa.FShapeConversion:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"src => dest\"", mnemonic)
		}
		a, err := parseReg(lhs)
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyFloat, FloatOp: op, A: a, Dest: dest}
		return []uint32{isa.Encode(in)}, nil

	case isa.FShapeComp:
		ops := trimOperands(rest)
		if len(ops) != 2 {
			return nil, fmt.Errorf("%s takes two registers, got %q", mnemonic, rest)
		}
		a, err := parseReg(ops[0])
		if err != nil {
			return nil, err
		}
		b, err := parseReg(ops[1])
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyFloat, FloatOp: op, A: a, B: b}
		return []uint32{isa.Encode(in)}, nil

	case isa.FShapeCheck:
		reg, err := parseReg(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyFloat, FloatOp: op, A: reg}
		return []uint32{isa.Encode(in)}, nil
	}
	return nil, fmt.Errorf("unhandled shape for %s", mnemonic)
}

func parseRegisterClass(mnemonic, rest string) ([]uint32, error) {
	op, ok := registerMnemonics[mnemonic]
	if !ok {
		return nil, fmt.Errorf("unknown register-class mnemonic %q", mnemonic)
	}

	switch op {
	case isa.Lbr, isa.Lsr, isa.Llr:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"address => dest\"", mnemonic)
		}
		addr, err := parseAddrOperand(lhs)
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{
			Opty: isa.OptyRegister, RegOp: op, Mode: addr.mode,
			Base: addr.base, Index: addr.index, Offset: addr.offset, Dest: dest,
		}
		return []uint32{isa.Encode(in)}, nil

	case isa.Sbr, isa.Ssr, isa.Slr:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("%s requires \"value => address\"", mnemonic)
		}
		value, err := parseReg(lhs)
		if err != nil {
			return nil, err
		}
		addr, err := parseAddrOperand(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{
			Opty: isa.OptyRegister, RegOp: op, Mode: addr.mode,
			Base: addr.base, Index: addr.index, Offset: addr.offset, Dest: value,
		}
		return []uint32{isa.Encode(in)}, nil

	case isa.Tfr:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("TFR requires \"source => dest\"")
		}
		source, err := parseReg(lhs)
		if err != nil {
			return nil, err
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Tfr, Source: source, Dest2: dest}
		return []uint32{isa.Encode(in)}, nil

	case isa.Push:
		reg, err := parseReg(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Push, Source: reg}
		return []uint32{isa.Encode(in)}, nil

	case isa.Pop:
		reg, err := parseReg(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Pop, Dest: reg}
		return []uint32{isa.Encode(in)}, nil

	case isa.Ldr:
		lhs, rhs, ok := splitArrow(rest)
		if !ok {
			return nil, fmt.Errorf("LDR requires \"value => dest\"")
		}
		dest, err := parseReg(rhs)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(lhs, "&") {
			v, err := parseInt(lhs[1:])
			if err != nil {
				return nil, err
			}
			in := &isa.Instruction{
				Opty: isa.OptyRegister, RegOp: isa.Ldr, ZeroPage: true, Offset: int32(v), Dest: dest,
			}
			return []uint32{isa.Encode(in)}, nil
		}
		v, err := parseInt(lhs)
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 0xFFFF {
			return nil, fmt.Errorf("LDR immediate %q does not fit in 16 bits; use LOAD", lhs)
		}
		in := &isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Ldr, Zero: true, Imm: uint32(v), Dest: dest,
		}
		return []uint32{isa.Encode(in)}, nil
	}
	return nil, fmt.Errorf("unhandled register-class opcode %s", mnemonic)
}

// parseLoad expands the `load` pseudo-op (SPEC_FULL.md §4.1): a
// constant, label, or integer that may need the full 32 bits. It
// always reserves two words (see instructionSize), emitting a single
// LDR padded with a NOP when the value fits in 16 bits, or a low/high
// LDR pair when it does not.
func parseLoad(rest string, syms *symbolTable) ([]uint32, error) {
	lhs, rhs, ok := splitArrow(rest)
	if !ok {
		return nil, fmt.Errorf("LOAD requires \"value => dest\"")
	}
	dest, err := parseReg(rhs)
	if err != nil {
		return nil, err
	}
	value, err := syms.resolve(lhs)
	if err != nil {
		return nil, err
	}

	nop := isa.Encode(&isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Nop})
	if value <= 0xFFFF {
		low := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Ldr, Zero: true, Imm: value, Dest: dest,
		})
		return []uint32{low, nop}, nil
	}

	low := isa.Encode(&isa.Instruction{
		Opty: isa.OptyRegister, RegOp: isa.Ldr, Zero: true, Shift: 0, Imm: value & 0xFFFF, Dest: dest,
	})
	high := isa.Encode(&isa.Instruction{
		Opty: isa.OptyRegister, RegOp: isa.Ldr, Zero: false, Shift: 1, Imm: (value >> 16) & 0xFFFF, Dest: dest,
	})
	return []uint32{low, high}, nil
}
