package pipeline

import "github.com/sarchlab/seis/isa"

// ForwardSource indicates where a forwarded operand value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed, use the register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward from the EX/MEM latch's ALU result.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward from the MEM/WB latch's result.
	ForwardFromMEMWB
)

// HazardUnit detects data hazards and determines forwarding/stall signals,
// generalized from the teacher's fixed Rn/Rm/Rd hazard unit to SEIS's
// variable-width isa.Instruction.ReadRegs()/WriteRegs() register sets.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit { return &HazardUnit{} }

// Forwarding returns, for each register reg reads, the latch it should be
// forwarded from (or ForwardNone to read the register file). EX/MEM takes
// priority over MEM/WB as it holds the more recently produced value.
func (h *HazardUnit) Forwarding(reads []isa.Reg, exmem *EXMEMLatch, memwb *MEMWBLatch) map[isa.Reg]ForwardSource {
	result := make(map[isa.Reg]ForwardSource, len(reads))
	for _, reg := range reads {
		result[reg] = h.forwardForReg(reg, exmem, memwb)
	}
	return result
}

func (h *HazardUnit) forwardForReg(reg isa.Reg, exmem *EXMEMLatch, memwb *MEMWBLatch) ForwardSource {
	if exmem.Valid() && writes(exmem.WriteRegs, reg) {
		return ForwardFromEXMEM
	}
	if memwb.Valid() && writes(memwb.WriteRegs, reg) {
		return ForwardFromMEMWB
	}
	return ForwardNone
}

// LoadUseHazard detects a load (including POP) in Execute (idex) whose
// destination is read by the instruction currently in Decode, which
// requires a one-cycle stall since the loaded value is not available until
// the end of Memory.
func (h *HazardUnit) LoadUseHazard(idex *IDEXLatch, nextReads []isa.Reg) bool {
	if !idex.Valid() || idex.Inst == nil {
		return false
	}
	if load, _, _ := MemoryShape(idex.Inst); !load {
		return false
	}
	for _, w := range idex.WriteRegs {
		if writes(nextReads, w) {
			return true
		}
	}
	return false
}

func writes(regs []isa.Reg, reg isa.Reg) bool {
	for _, r := range regs {
		if r == reg {
			return true
		}
	}
	return false
}
