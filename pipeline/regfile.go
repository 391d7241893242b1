package pipeline

import "github.com/sarchlab/seis/isa"

// RegFile holds the SEIS register file: 16 general-purpose registers,
// four status registers, and five single-bit flags (SPEC_FULL.md §3).
type RegFile struct {
	V           [16]uint32
	SP, BP, LP, PC uint32
	ZF, OF, EPS, NAN, INF bool
}

// Read returns the 32-bit value of any register, including flags
// (returned as 0/1) and status registers.
func (r *RegFile) Read(reg isa.Reg) uint32 {
	switch {
	case reg <= isa.VF:
		return r.V[reg]
	case reg == isa.SP:
		return r.SP
	case reg == isa.BP:
		return r.BP
	case reg == isa.LP:
		return r.LP
	case reg == isa.PC:
		return r.PC
	case reg == isa.ZF:
		return boolToWord(r.ZF)
	case reg == isa.OF:
		return boolToWord(r.OF)
	case reg == isa.EPS:
		return boolToWord(r.EPS)
	case reg == isa.NAN:
		return boolToWord(r.NAN)
	case reg == isa.INF:
		return boolToWord(r.INF)
	default:
		return 0
	}
}

// Write sets any register's value, including flags (nonzero is true) and
// status registers.
func (r *RegFile) Write(reg isa.Reg, v uint32) {
	switch {
	case reg <= isa.VF:
		r.V[reg] = v
	case reg == isa.SP:
		r.SP = v
	case reg == isa.BP:
		r.BP = v
	case reg == isa.LP:
		r.LP = v
	case reg == isa.PC:
		r.PC = v
	case reg == isa.ZF:
		r.ZF = v != 0
	case reg == isa.OF:
		r.OF = v != 0
	case reg == isa.EPS:
		r.EPS = v != 0
	case reg == isa.NAN:
		r.NAN = v != 0
	case reg == isa.INF:
		r.INF = v != 0
	}
}

// ApplyFlags merges only the flags set by an ALU op result; flags not
// mentioned by the instruction's WriteRegs are left untouched by the
// caller (general ops do not mutate flags, SPEC_FULL.md §3).
func (r *RegFile) ApplyFlags(f isa.Flags, writes []isa.Reg) {
	for _, reg := range writes {
		switch reg {
		case isa.ZF:
			r.ZF = f.ZF
		case isa.OF:
			r.OF = f.OF
		case isa.NAN:
			r.NAN = f.NAN
		case isa.INF:
			r.INF = f.INF
		}
	}
}

// Reset zeros every register.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
