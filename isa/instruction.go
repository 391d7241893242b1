package isa

import "fmt"

// Opty is the 3-bit instruction class field occupying the most
// significant bits of every instruction word.
type Opty uint8

// Instruction classes.
const (
	OptyControl Opty = iota
	OptyInteger
	OptyFloat
	OptyRegister
)

func (o Opty) String() string {
	switch o {
	case OptyControl:
		return "control"
	case OptyInteger:
		return "integer"
	case OptyFloat:
		return "float"
	case OptyRegister:
		return "register"
	default:
		return fmt.Sprintf("opty(%d)", uint8(o))
	}
}

// ControlOp enumerates the control-class opcodes.
type ControlOp uint8

// Control opcodes, matching original_source/libseis's control.rs layout.
const (
	Nop  ControlOp = 0
	Halt ControlOp = 1
	Jmp  ControlOp = 2
	Jsr  ControlOp = 3
	Ret  ControlOp = 4
	Jeq  ControlOp = 8
	Jne  ControlOp = 12
	Jgt  ControlOp = 13
	Jlt  ControlOp = 14
	Jge  ControlOp = 9
	Jle  ControlOp = 10
)

var controlNames = map[ControlOp]string{
	Nop: "NOP", Halt: "HALT", Jmp: "JMP", Jsr: "JSR", Ret: "RET",
	Jeq: "JEQ", Jne: "JNE", Jgt: "JGT", Jlt: "JLT", Jge: "JGE", Jle: "JLE",
}

func (c ControlOp) String() string {
	if n, ok := controlNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CTL(%d)", uint8(c))
}

// HasJumpTarget reports whether the control opcode carries a Jump operand.
func (c ControlOp) HasJumpTarget() bool {
	switch c {
	case Nop, Halt, Ret:
		return false
	default:
		return true
	}
}

// JumpKind distinguishes a register-indirect jump from a PC-relative one.
type JumpKind uint8

const (
	JumpRegister JumpKind = iota
	JumpRelative
)

// Jump is the operand shape for control-class branches.
type Jump struct {
	Kind   JumpKind
	Target Reg   // valid when Kind == JumpRegister
	Offset int32 // valid when Kind == JumpRelative; in bytes, word-aligned
}

// IntegerOp enumerates the integer-class opcodes.
type IntegerOp uint8

// Integer opcodes, matching original_source/libseis's integer.rs layout.
const (
	Add IntegerOp = iota
	Sub
	Mul
	Dvu
	Dvs
	Mod
	And
	Ior
	Xor
	Not
	Sxt
	Bsl
	Bsr
	Asr
	Rol
	Ror
	Cmp
	Tst
)

var integerNames = [...]string{
	"ADD", "SUB", "MUL", "DVU", "DVS", "MOD", "AND", "IOR", "XOR",
	"NOT", "SXT", "BSL", "BSR", "ASR", "ROL", "ROR", "CMP", "TST",
}

func (i IntegerOp) String() string {
	if int(i) < len(integerNames) {
		return integerNames[i]
	}
	return fmt.Sprintf("INT(%d)", uint8(i))
}

// IntegerShape describes which operand layout an integer opcode uses.
type IntegerShape uint8

const (
	ShapeBinary IntegerShape = iota
	ShapeUnary
	ShapeSignExtend
	ShapeComp
	ShapeTest
)

// Shape returns the operand layout for an integer opcode.
func (i IntegerOp) Shape() IntegerShape {
	switch i {
	case Not:
		return ShapeUnary
	case Sxt:
		return ShapeSignExtend
	case Cmp:
		return ShapeComp
	case Tst:
		return ShapeTest
	default:
		return ShapeBinary
	}
}

// FloatOp enumerates the float-class opcodes.
type FloatOp uint8

// Float opcodes, matching original_source/libseis's floating_point.rs layout.
const (
	Fadd FloatOp = iota
	Fsub
	Fmul
	Fdiv
	Fmod
	Fcmp
	Fneg
	Frec
	Itof
	Ftoi
	Fchk
)

var floatNames = [...]string{
	"FADD", "FSUB", "FMUL", "FDIV", "FMOD", "FCMP", "FNEG", "FREC", "ITOF", "FTOI", "FCHK",
}

func (f FloatOp) String() string {
	if int(f) < len(floatNames) {
		return floatNames[f]
	}
	return fmt.Sprintf("FLT(%d)", uint8(f))
}

// FloatShape describes which operand layout a float opcode uses.
type FloatShape uint8

const (
	FShapeBinary FloatShape = iota
	FShapeUnary
	FShapeConversion
	FShapeComp
	FShapeCheck
)

// Shape returns the operand layout for a float opcode.
func (f FloatOp) Shape() FloatShape {
	switch f {
	case Fneg, Frec:
		return FShapeUnary
	case Itof, Ftoi:
		return FShapeConversion
	case Fcmp:
		return FShapeComp
	case Fchk:
		return FShapeCheck
	default:
		return FShapeBinary
	}
}

// RegisterOp enumerates the register-class (load/store/transfer) opcodes.
type RegisterOp uint8

// Register-class opcodes, matching original_source/libseis's register.rs layout.
const (
	Push RegisterOp = iota
	Pop
	Lbr
	Sbr
	Lsr
	Ssr
	Llr
	Slr
	Tfr
	Ldr
)

var registerNames = [...]string{
	"PUSH", "POP", "LBR", "SBR", "LSR", "SSR", "LLR", "SLR", "TFR", "LDR",
}

func (r RegisterOp) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("REG(%d)", uint8(r))
}

// IsLoad reports whether the opcode reads memory.
func (r RegisterOp) IsLoad() bool {
	switch r {
	case Lbr, Lsr, Llr:
		return true
	default:
		return false
	}
}

// IsStore reports whether the opcode writes memory.
func (r RegisterOp) IsStore() bool {
	switch r {
	case Sbr, Ssr, Slr:
		return true
	default:
		return false
	}
}

// AccessWidth returns the width in bytes of a load/store opcode's memory access.
func (r RegisterOp) AccessWidth() int {
	switch r {
	case Lbr, Sbr:
		return 1
	case Lsr, Ssr:
		return 2
	case Llr, Slr:
		return 4
	default:
		return 4
	}
}

// AddrMode is the 3-bit addressing mode field used by LBR/SBR/LSR/SSR/LLR/SLR.
type AddrMode uint8

const (
	AddrIndirect AddrMode = iota
	AddrOffset
	AddrIndexed
	AddrStackOffset
	AddrVolatileIndirect
	AddrVolatileOffset
	AddrVolatileIndexed
	AddrZeroPage
)

// Volatile reports whether the addressing mode bypasses the cache.
func (m AddrMode) Volatile() bool {
	return m == AddrVolatileIndirect || m == AddrVolatileOffset || m == AddrVolatileIndexed
}

// Base returns the non-volatile addressing kind underlying m, folding the
// volatile variants onto their base mode.
func (m AddrMode) Base() AddrMode {
	switch m {
	case AddrVolatileIndirect:
		return AddrIndirect
	case AddrVolatileOffset:
		return AddrOffset
	case AddrVolatileIndexed:
		return AddrIndexed
	default:
		return m
	}
}

func (m AddrMode) String() string {
	switch m {
	case AddrIndirect:
		return "indirect"
	case AddrOffset:
		return "offset"
	case AddrIndexed:
		return "indexed"
	case AddrStackOffset:
		return "stack-offset"
	case AddrVolatileIndirect:
		return "volatile-indirect"
	case AddrVolatileOffset:
		return "volatile-offset"
	case AddrVolatileIndexed:
		return "volatile-indexed"
	case AddrZeroPage:
		return "zero-page"
	default:
		return fmt.Sprintf("addrmode(%d)", uint8(m))
	}
}

// Instruction is the decoded form of a 32-bit SEIS instruction word. It is
// a flat tagged union: only the fields relevant to Opty/ControlOp/IntOp/
// FloatOp/RegOp are meaningful for a given instruction.
type Instruction struct {
	Opty Opty

	// Control class.
	ControlOp ControlOp
	Jump      Jump

	// Integer and float class share this operand shape: A/B/Dest are
	// interpreted per IntOp.Shape()/FloatOp.Shape().
	IntOp     IntegerOp
	FloatOp   FloatOp
	A, B      Reg
	Dest      Reg
	Signed    bool // CMP's signed-compare bit
	FromWidth uint8

	// ImmediateForm selects BinaryOp's 13-bit-immediate encoding (Dest =
	// A op ImmVal) over the two-register form; B is unused when set.
	ImmediateForm bool
	ImmVal        uint32

	// Register class (load/store/transfer/stack/immediate).
	RegOp    RegisterOp
	Mode     AddrMode
	Base     Reg // base/indirect register
	Index    Reg // index register for AddrIndexed
	Offset   int32
	Source   Reg // TFR source
	Dest2    Reg // TFR destination (kept distinct from Dest for clarity)
	Zero     bool
	Shift    uint8
	Imm      uint32
	ZeroPage bool // LDR ZeroPageTranslate variant
}

// ReadRegs returns the set of registers this instruction reads as sources.
func (in *Instruction) ReadRegs() []Reg {
	switch in.Opty {
	case OptyControl:
		regs := []Reg{}
		if in.Jump.Kind == JumpRegister && in.ControlOp.HasJumpTarget() {
			regs = append(regs, in.Jump.Target)
		}
		switch in.ControlOp {
		case Jeq, Jne, Jgt, Jlt, Jge, Jle:
			regs = append(regs, ZF, OF)
		case Ret:
			regs = append(regs, LP)
		}
		return regs
	case OptyInteger:
		switch in.IntOp.Shape() {
		case ShapeBinary:
			// BinaryOp takes two independent source registers: Dest = A op B.
			// The immediate form reads only A; ImmVal is not a register.
			if in.ImmediateForm {
				return []Reg{in.A}
			}
			return []Reg{in.A, in.B}
		case ShapeUnary, ShapeSignExtend:
			return []Reg{in.A}
		case ShapeComp:
			return []Reg{in.A, in.B}
		case ShapeTest:
			return []Reg{in.A}
		}
	case OptyFloat:
		switch in.FloatOp.Shape() {
		case FShapeBinary:
			return []Reg{in.A, in.B}
		case FShapeComp:
			return []Reg{in.A, in.B}
		case FShapeUnary, FShapeConversion, FShapeCheck:
			return []Reg{in.A}
		}
	case OptyRegister:
		switch in.RegOp {
		case Lbr, Lsr, Llr:
			if in.Mode == AddrZeroPage {
				return nil
			}
			regs := []Reg{in.Base}
			if in.Mode.Base() == AddrIndexed {
				regs = append(regs, in.Index)
			}
			return regs
		case Sbr, Ssr, Slr:
			regs := []Reg{in.Dest}
			if in.Mode != AddrZeroPage {
				regs = append(regs, in.Base)
				if in.Mode.Base() == AddrIndexed {
					regs = append(regs, in.Index)
				}
			}
			return regs
		case Tfr:
			return []Reg{in.Source}
		case Push:
			return []Reg{in.Source, SP}
		case Pop:
			return []Reg{SP}
		case Ldr:
			return nil
		}
	}
	return nil
}

// WriteRegs returns the set of registers this instruction writes.
func (in *Instruction) WriteRegs() []Reg {
	switch in.Opty {
	case OptyControl:
		switch in.ControlOp {
		case Jsr:
			return []Reg{LP, PC}
		case Ret, Jmp, Jeq, Jne, Jgt, Jlt, Jge, Jle:
			return []Reg{PC}
		}
		return nil
	case OptyInteger:
		switch in.IntOp.Shape() {
		case ShapeBinary, ShapeUnary, ShapeSignExtend:
			if in.IntOp == Add || in.IntOp == Sub {
				return []Reg{in.Dest, ZF, OF}
			}
			return []Reg{in.Dest}
		case ShapeComp:
			return []Reg{ZF, OF}
		case ShapeTest:
			return []Reg{ZF}
		}
	case OptyFloat:
		switch in.FloatOp.Shape() {
		case FShapeBinary, FShapeUnary:
			return []Reg{in.Dest}
		case FShapeConversion:
			return []Reg{in.Dest}
		case FShapeComp:
			return []Reg{ZF, NAN, INF}
		case FShapeCheck:
			return []Reg{NAN, INF}
		}
	case OptyRegister:
		switch in.RegOp {
		case Lbr, Lsr, Llr:
			return []Reg{in.Dest}
		case Sbr, Ssr, Slr:
			return nil
		case Tfr:
			return []Reg{in.Dest2}
		case Push:
			return []Reg{SP}
		case Pop:
			return []Reg{in.Dest, SP}
		case Ldr:
			return []Reg{in.Dest}
		}
	}
	return nil
}
