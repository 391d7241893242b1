package isa

import "fmt"

// Disassemble renders a decoded Instruction as SEIS assembly syntax. It is
// used by the driver's `disasm` command and the assembler's listing
// output (SPEC_FULL.md §4.6).
func Disassemble(in *Instruction) string {
	switch in.Opty {
	case OptyControl:
		return disasmControl(in)
	case OptyInteger:
		return disasmInteger(in)
	case OptyFloat:
		return disasmFloat(in)
	case OptyRegister:
		return disasmRegister(in)
	default:
		return "???"
	}
}

func disasmControl(in *Instruction) string {
	if !in.ControlOp.HasJumpTarget() {
		return in.ControlOp.String()
	}
	switch in.Jump.Kind {
	case JumpRegister:
		return fmt.Sprintf("%s %s", in.ControlOp, in.Jump.Target)
	default:
		return fmt.Sprintf("%s %+d", in.ControlOp, in.Jump.Offset)
	}
}

func disasmInteger(in *Instruction) string {
	switch in.IntOp.Shape() {
	case ShapeBinary:
		if in.ImmediateForm {
			return fmt.Sprintf("%s %s,#%d,%s", in.IntOp, in.A, in.ImmVal, in.Dest)
		}
		return fmt.Sprintf("%s %s,%s,%s", in.IntOp, in.A, in.B, in.Dest)
	case ShapeUnary:
		return fmt.Sprintf("%s %s,%s", in.IntOp, in.A, in.Dest)
	case ShapeSignExtend:
		return fmt.Sprintf("%s %s,%s,%d", in.IntOp, in.A, in.Dest, in.FromWidth)
	case ShapeComp:
		sign := ""
		if in.Signed {
			sign = "S"
		}
		return fmt.Sprintf("%s%s %s,%s", in.IntOp, sign, in.A, in.B)
	case ShapeTest:
		return fmt.Sprintf("%s %s", in.IntOp, in.A)
	}
	return in.IntOp.String()
}

func disasmFloat(in *Instruction) string {
	switch in.FloatOp.Shape() {
	case FShapeBinary:
		return fmt.Sprintf("%s %s,%s,%s", in.FloatOp, in.A, in.B, in.Dest)
	case FShapeUnary, FShapeConversion:
		return fmt.Sprintf("%s %s,%s", in.FloatOp, in.A, in.Dest)
	case FShapeComp:
		return fmt.Sprintf("%s %s,%s", in.FloatOp, in.A, in.B)
	case FShapeCheck:
		return fmt.Sprintf("%s %s", in.FloatOp, in.A)
	}
	return in.FloatOp.String()
}

func disasmRegister(in *Instruction) string {
	switch in.RegOp {
	case Lbr, Lsr, Llr:
		return fmt.Sprintf("%s %s%s,%s", in.RegOp, addrOperand(in), ifVolatile(in.Mode), in.Dest)
	case Sbr, Ssr, Slr:
		return fmt.Sprintf("%s %s,%s%s", in.RegOp, in.Dest, addrOperand(in), ifVolatile(in.Mode))
	case Tfr:
		return fmt.Sprintf("TFR %s,%s", in.Source, in.Dest2)
	case Push, Pop:
		return fmt.Sprintf("%s %s", in.RegOp, in.Source)
	case Ldr:
		if in.ZeroPage {
			return fmt.Sprintf("LDR &0x%04X,%s", uint32(in.Offset), in.Dest)
		}
		return fmt.Sprintf("LDR 0x%04X,%s", in.Imm, in.Dest)
	}
	return in.RegOp.String()
}

func addrOperand(in *Instruction) string {
	switch in.Mode.Base() {
	case AddrZeroPage:
		return fmt.Sprintf("$0x%04X", uint32(in.Offset))
	case AddrStackOffset:
		return fmt.Sprintf("%%%d", in.Offset)
	case AddrIndirect:
		return fmt.Sprintf("(%s)", in.Base)
	case AddrOffset:
		return fmt.Sprintf("%d(%s)", in.Offset, in.Base)
	case AddrIndexed:
		return fmt.Sprintf("(%s,%s)", in.Base, in.Index)
	}
	return "?"
}

func ifVolatile(m AddrMode) string {
	if m.Volatile() {
		return "!"
	}
	return ""
}
