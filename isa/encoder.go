package isa

// Encode converts a typed Instruction back into its 32-bit word
// representation. Encode(Decode(w)) reproduces w masked to the bits this
// codec actually defines (invariant 1, §8 of SPEC_FULL.md).
func Encode(in *Instruction) uint32 {
	switch in.Opty {
	case OptyControl:
		return encodeControl(in)
	case OptyInteger:
		return encodeInteger(in)
	case OptyFloat:
		return encodeFloat(in)
	case OptyRegister:
		return encodeRegister(in)
	default:
		return 0
	}
}

func optyWord(o Opty) uint32 {
	return uint32(o) << optyShift
}

func encodeControl(in *Instruction) uint32 {
	word := optyWord(OptyControl) | uint32(in.ControlOp)<<controlOpShift
	if !in.ControlOp.HasJumpTarget() {
		return word
	}
	switch in.Jump.Kind {
	case JumpRegister:
		word |= uint32(in.Jump.Target) & jumpRegMask
	case JumpRelative:
		word |= 1 << jumpKindBit
		word |= (uint32(in.Jump.Offset/4) & jumpOffsetMask)
	}
	return word
}

func encodeInteger(in *Instruction) uint32 {
	word := optyWord(OptyInteger) | uint32(in.IntOp)<<integerOpShift
	switch in.IntOp.Shape() {
	case ShapeBinary:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.Dest&regMask5) << regShiftLo
		if in.ImmediateForm {
			word |= intImmFlagBit
			word |= packIntImm(in.ImmVal)
		} else {
			word |= uint32(in.B&regMask5) << regShiftHi
		}
	case ShapeUnary:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.Dest&regMask5) << regShiftLo
	case ShapeSignExtend:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.Dest&regMask5) << regShiftLo
		word |= uint32(in.FromWidth&0x1F) << regShiftHi
	case ShapeComp:
		if in.Signed {
			word |= 1 << 19
		}
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.B&regMask5) << regShiftLo
	case ShapeTest:
		word |= uint32(in.A&regMask5) << regShiftLo
	}
	return word
}

func encodeFloat(in *Instruction) uint32 {
	word := optyWord(OptyFloat) | uint32(in.FloatOp)<<floatOpShift
	switch in.FloatOp.Shape() {
	case FShapeBinary:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.B&regMask5) << regShiftHi
		word |= uint32(in.Dest&regMask5) << regShiftLo
	case FShapeUnary, FShapeConversion:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.Dest&regMask5) << regShiftLo
	case FShapeComp:
		word |= uint32(in.A&regMask5) << regShiftMid
		word |= uint32(in.B&regMask5) << regShiftLo
	case FShapeCheck:
		word |= uint32(in.A&regMask5) << regShiftLo
	}
	return word
}

func encodeRegister(in *Instruction) uint32 {
	word := optyWord(OptyRegister) | uint32(in.RegOp)<<registerOpShift
	switch in.RegOp {
	case Lbr, Lsr, Llr, Sbr, Ssr, Slr:
		word |= encodeMemOp(in)
	case Tfr:
		word |= uint32(in.Source&0x1F) << 8
		word |= uint32(in.Dest2 & 0x1F)
	case Push:
		word |= uint32(in.Source & 0x1F)
	case Pop:
		// Pop's operand is the register written, not read; WriteRegs and
		// disasm both key on Dest, so encode from there. Decode mirrors
		// the bits into both Source and Dest (disasmRegister still reads
		// Source on the decoded form).
		word |= uint32(in.Dest & 0x1F)
	case Ldr:
		word |= encodeLdr(in)
	}
	return word
}

func encodeMemOp(in *Instruction) uint32 {
	word := uint32(in.Mode&addrModeMask) << addrModeShift
	word |= uint32(in.Dest&regMask5) << dataRegShift

	switch in.Mode {
	case AddrZeroPage:
		word |= uint32(in.Offset) & 0xFFFF
	case AddrStackOffset:
		word |= uint32(in.Offset) & 0xFFFF
	case AddrIndirect, AddrVolatileIndirect:
		word |= uint32(in.Base&regMask5) << baseRegShift
	case AddrOffset, AddrVolatileOffset:
		word |= uint32(in.Base&regMask5) << baseRegShift
		word |= uint32(in.Offset) & 0x7FF
	case AddrIndexed, AddrVolatileIndexed:
		word |= uint32(in.Base&regMask5) << baseRegShift
		word |= uint32(in.Index&regMask5) << indexRegShift
	}
	return word
}

func encodeLdr(in *Instruction) uint32 {
	if in.ZeroPage {
		word := uint32(1) << 20
		word |= uint32(in.Dest&0xF) << 21
		word |= uint32(in.Offset) & 0xFFFF
		return word
	}
	word := uint32(in.Dest&0xF) << 21
	if in.Zero {
		word |= 1 << 19
	}
	word |= uint32(in.Shift&0x3) << 17
	word |= in.Imm & 0xFFFF
	return word
}
