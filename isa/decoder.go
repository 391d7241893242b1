package isa

import "fmt"

// Bit layout, MSB (bit 31) first. All classes share the OPTY field in the
// top three bits; the remaining 29 bits are carved up per class exactly
// the way original_source/libseis lays out its four instruction_set
// modules, generalized to this codec's own field widths.
const (
	optyShift = 29
	optyMask  = 0x7

	controlOpShift = 25
	controlOpMask  = 0xF
	jumpKindBit    = 24
	jumpRegShift   = 0
	jumpRegMask    = 0x1F
	jumpOffsetMask = 0xFFFFFF // 24-bit signed word offset

	integerOpShift = 24
	integerOpMask  = 0x1F

	floatOpShift = 24
	floatOpMask  = 0x1F

	registerOpShift = 25
	registerOpMask  = 0xF
)

// regField widths used within the class-specific remaining bits.
const (
	regShiftHi  = 15 // first 5-bit register field within class payload
	regShiftMid = 10 // second 5-bit register field
	regShiftLo  = 5  // third 5-bit register field
	regMask5    = 0x1F
)

// Integer BinaryOp's immediate form reuses the B register field (bits
// 15-19) plus the otherwise-unused bits 20-23 and 0-3 to carry a 13-bit
// immediate, flagged by bit 4, mirroring original_source/libseis's
// BinaryOp::Immediate/IMM_FLAG_MASK split (adapted to this codec's wider
// 5-bit register fields).
const (
	intImmFlagBit = 1 << 4

	intImmLoShift = 0
	intImmLoMask  = 0xF // immediate bits 0-3

	intImmHiShift = 15
	intImmHiMask  = 0x1FF // immediate bits 4-12
)

func packIntImm(v uint32) uint32 {
	v &= 0x1FFF
	lo := v & intImmLoMask
	hi := (v >> 4) & intImmHiMask
	return lo<<intImmLoShift | hi<<intImmHiShift
}

func unpackIntImm(word uint32) uint32 {
	lo := (word >> intImmLoShift) & intImmLoMask
	hi := (word >> intImmHiShift) & intImmHiMask
	return lo | hi<<4
}

// Decoder decodes SEIS 32-bit instruction words into typed Instructions.
type Decoder struct{}

// NewDecoder creates a new SEIS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. It returns ErrDecodeError
// wrapped with the offending word if the word does not name a known
// opcode within its class.
func Decode(word uint32) (*Instruction, error) {
	opty := Opty((word >> optyShift) & optyMask)
	switch opty {
	case OptyControl:
		return decodeControl(word)
	case OptyInteger:
		return decodeInteger(word)
	case OptyFloat:
		return decodeFloat(word)
	case OptyRegister:
		return decodeRegister(word)
	default:
		return nil, fmt.Errorf("%w: unknown OPTY %d in word 0x%08X", ErrDecodeError, opty, word)
	}
}

// Decode is the method form used by callers that prefer a decoder value,
// matching the teacher's Decoder.Decode(word) shape.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	return Decode(word)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func decodeControl(word uint32) (*Instruction, error) {
	op := ControlOp((word >> controlOpShift) & controlOpMask)
	if _, ok := controlNames[op]; !ok {
		return nil, fmt.Errorf("%w: unknown control opcode %d in word 0x%08X", ErrDecodeError, op, word)
	}

	in := &Instruction{Opty: OptyControl, ControlOp: op}
	if !op.HasJumpTarget() {
		return in, nil
	}

	kind := (word >> jumpKindBit) & 0x1
	if kind == 0 {
		in.Jump = Jump{Kind: JumpRegister, Target: Reg((word >> jumpRegShift) & jumpRegMask)}
	} else {
		raw := word & jumpOffsetMask
		in.Jump = Jump{Kind: JumpRelative, Offset: signExtend(raw, 24) * 4}
	}
	return in, nil
}

func decodeInteger(word uint32) (*Instruction, error) {
	op := IntegerOp((word >> integerOpShift) & integerOpMask)
	if int(op) >= len(integerNames) {
		return nil, fmt.Errorf("%w: unknown integer opcode %d in word 0x%08X", ErrDecodeError, op, word)
	}

	in := &Instruction{Opty: OptyInteger, IntOp: op}
	switch op.Shape() {
	case ShapeBinary:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.Dest = Reg((word >> regShiftLo) & regMask5)
		if word&intImmFlagBit != 0 {
			in.ImmediateForm = true
			in.ImmVal = unpackIntImm(word)
		} else {
			in.B = Reg((word >> regShiftHi) & regMask5)
		}
	case ShapeUnary:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.Dest = Reg((word >> regShiftLo) & regMask5)
	case ShapeSignExtend:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.Dest = Reg((word >> regShiftLo) & regMask5)
		in.FromWidth = uint8((word >> regShiftHi) & 0x1F)
	case ShapeComp:
		in.Signed = (word>>19)&0x1 != 0
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.B = Reg((word >> regShiftLo) & regMask5)
	case ShapeTest:
		in.A = Reg((word >> regShiftLo) & regMask5)
	}
	return in, nil
}

func decodeFloat(word uint32) (*Instruction, error) {
	op := FloatOp((word >> floatOpShift) & floatOpMask)
	if int(op) >= len(floatNames) {
		return nil, fmt.Errorf("%w: unknown float opcode %d in word 0x%08X", ErrDecodeError, op, word)
	}

	in := &Instruction{Opty: OptyFloat, FloatOp: op}
	switch op.Shape() {
	case FShapeBinary:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.B = Reg((word >> regShiftHi) & regMask5)
		in.Dest = Reg((word >> regShiftLo) & regMask5)
	case FShapeUnary, FShapeConversion:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.Dest = Reg((word >> regShiftLo) & regMask5)
	case FShapeComp:
		in.A = Reg((word >> regShiftMid) & regMask5)
		in.B = Reg((word >> regShiftLo) & regMask5)
	case FShapeCheck:
		in.A = Reg((word >> regShiftLo) & regMask5)
	}
	return in, nil
}

func decodeRegister(word uint32) (*Instruction, error) {
	op := RegisterOp((word >> registerOpShift) & registerOpMask)
	if int(op) >= len(registerNames) {
		return nil, fmt.Errorf("%w: unknown register opcode %d in word 0x%08X", ErrDecodeError, op, word)
	}

	in := &Instruction{Opty: OptyRegister, RegOp: op}
	switch op {
	case Lbr, Lsr, Llr, Sbr, Ssr, Slr:
		decodeMemOp(word, in)
	case Tfr:
		in.Source = Reg((word >> 8) & 0x1F)
		in.Dest2 = Reg(word & 0x1F)
	case Push, Pop:
		in.Source = Reg(word & 0x1F)
		in.Dest = in.Source
	case Ldr:
		decodeLdr(word, in)
	}
	return in, nil
}

// Memory-op word layout (bits 23-21 addr mode, bits 20-16 data register,
// remaining bits 15-0 carry the addressing payload per mode):
//
//	ZeroPage/StackOffset:      [data:5][imm16]
//	Indirect/VolatileIndirect: [data:5][base:5][unused:11]
//	Offset/VolatileOffset:     [data:5][base:5][offset:11 signed]
//	Indexed/VolatileIndexed:   [data:5][base:5][index:5][unused:6]
const (
	addrModeShift = 21
	addrModeMask  = 0x7
	dataRegShift  = 16
	baseRegShift  = 11
	indexRegShift = 6
)

func decodeMemOp(word uint32, in *Instruction) {
	mode := AddrMode((word >> addrModeShift) & addrModeMask)
	in.Mode = mode
	in.Dest = Reg((word >> dataRegShift) & regMask5)

	switch mode {
	case AddrZeroPage:
		in.Offset = int32(word & 0xFFFF)
	case AddrStackOffset:
		in.Offset = signExtend(word&0xFFFF, 16)
	case AddrIndirect, AddrVolatileIndirect:
		in.Base = Reg((word >> baseRegShift) & regMask5)
	case AddrOffset, AddrVolatileOffset:
		in.Base = Reg((word >> baseRegShift) & regMask5)
		in.Offset = signExtend(word&0x7FF, 11)
	case AddrIndexed, AddrVolatileIndexed:
		in.Base = Reg((word >> baseRegShift) & regMask5)
		in.Index = Reg((word >> indexRegShift) & regMask5)
	}
}

func decodeLdr(word uint32, in *Instruction) {
	zeroPageTranslate := (word>>20)&0x1 != 0
	in.ZeroPage = zeroPageTranslate
	if zeroPageTranslate {
		in.Offset = int32(word & 0xFFFF)
		in.Dest = Reg((word >> 21) & 0xF)
		return
	}

	in.Zero = (word>>19)&0x1 != 0
	in.Shift = uint8((word >> 17) & 0x3)
	in.Imm = word & 0xFFFF
	in.Dest = Reg((word >> 21) & 0xF)
}
