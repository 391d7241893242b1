package pipeline

import (
	"fmt"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/isa"
	"github.com/sarchlab/seis/mem"
)

// FetchStage reads one instruction word, optionally through an instruction
// cache, generalized from the teacher's FetchStage to SEIS's AccessResult
// cycle accounting.
type FetchStage struct {
	icache *cache.Cache
	mem    *mem.Memory
}

// NewFetchStage creates a fetch stage backed by mem, optionally through icache.
func NewFetchStage(m *mem.Memory, icache *cache.Cache) *FetchStage {
	return &FetchStage{icache: icache, mem: m}
}

// Fetch returns the instruction word at pc and the number of cycles the
// access took.
func (s *FetchStage) Fetch(pc uint32) (uint32, uint64) {
	if s.icache != nil {
		res := s.icache.Read(pc, 4)
		return uint32(res.Data), res.Cycles
	}
	word, _ := s.mem.ReadInstruction(pc)
	return word, 1
}

// DecodeStage decodes a fetched word and reads its source operands, applying
// any forwarding the hazard unit has determined.
type DecodeStage struct {
	regs   *RegFile
	hazard *HazardUnit
}

// NewDecodeStage creates a decode stage reading from regs.
func NewDecodeStage(regs *RegFile, hazard *HazardUnit) *DecodeStage {
	return &DecodeStage{regs: regs, hazard: hazard}
}

// DecodedOperands holds the resolved (post-forwarding) operand values an
// Execute stage needs, independent of which instruction class produced them.
// C is only populated for the one shape with three read registers: an
// indexed SBR/SSR/SLR, whose ReadRegs() is [Dest, Base, Index].
type DecodedOperands struct {
	A, B, C, Dest uint32
}

// Decode decodes word and resolves its source operands, forwarding from
// exmem/memwb where the hazard unit calls for it.
func (s *DecodeStage) Decode(word uint32, exmem *EXMEMLatch, memwb *MEMWBLatch) (*isa.Instruction, DecodedOperands, error) {
	inst, err := isa.Decode(word)
	if err != nil {
		return nil, DecodedOperands{}, err
	}

	reads := inst.ReadRegs()
	// inst.Dest is read directly below regardless of whether the
	// instruction's own ReadRegs() names it (e.g. LDR's merge-into-Dest
	// variant does not), so it needs a forwarding entry of its own even
	// when it duplicates reads[0] for shapes that already name it.
	forward := s.hazard.Forwarding(append(append([]isa.Reg{}, reads...), inst.Dest), exmem, memwb)

	read := func(reg isa.Reg) uint32 {
		switch forward[reg] {
		case ForwardFromEXMEM:
			// exmem holds this same tick's freshly computed Execute output
			// (the instruction immediately preceding this one, still one
			// stage ahead); its load data, if any, is not ready until
			// Memory completes, but that case is always caught earlier by
			// HazardUnit.LoadUseHazard, which stalls Decode instead.
			return forwardValue(reg, exmem.Inst, exmem.ALUResult, 0, exmem.Aux, false, exmem.Flags)
		case ForwardFromMEMWB:
			// memwb holds this same tick's freshly computed Memory output
			// (the instruction two back), so a load's data is already
			// available here.
			return forwardValue(reg, memwb.Inst, memwb.Result, memwb.MemData, memwb.Aux, memwb.FromMem, memwb.Flags)
		default:
			return s.regs.Read(reg)
		}
	}

	var ops DecodedOperands
	if len(reads) > 0 {
		ops.A = read(reads[0])
	}
	if len(reads) > 1 {
		ops.B = read(reads[1])
	}
	if len(reads) > 2 {
		ops.C = read(reads[2])
	}
	// Dest's current value feeds store data (SBR/SSR/SLR); it is safe to
	// read even when inst.Dest is meaningless for this shape.
	ops.Dest = read(inst.Dest)

	return inst, ops, nil
}

// forwardValue resolves the word a forwarded register read should see:
// flag registers read out of Flags rather than Result/MemData, POP's SP
// write comes from Aux rather than Result (SPEC_FULL.md Open Question 3),
// and an ordinary load forwards MemData once fromMem is set.
func forwardValue(reg isa.Reg, inst *isa.Instruction, result, memData, aux uint32, fromMem bool, flags isa.Flags) uint32 {
	// EPS is a plain settable threshold register, not an ALU-produced flag
	// (isa.Flags has no EPS bit), so a TFR into EPS forwards like any other
	// destination register rather than through flagWord.
	if reg.IsFlag() && reg != isa.EPS {
		return flagWord(reg, flags)
	}
	if inst != nil && inst.Opty == isa.OptyRegister && inst.RegOp == isa.Pop && reg == isa.SP {
		return aux
	}
	if fromMem {
		return memData
	}
	return result
}

func flagWord(reg isa.Reg, f isa.Flags) uint32 {
	var set bool
	switch reg {
	case isa.ZF:
		set = f.ZF
	case isa.OF:
		set = f.OF
	case isa.NAN:
		set = f.NAN
	case isa.INF:
		set = f.INF
	}
	if set {
		return 1
	}
	return 0
}

// ExecuteStage performs ALU computation, address calculation, and branch
// resolution.
type ExecuteStage struct{}

// NewExecuteStage creates an execute stage.
func NewExecuteStage() *ExecuteStage { return &ExecuteStage{} }

// ExecuteResult holds everything produced by one Execute cycle.
type ExecuteResult struct {
	Result       uint32
	StoreVal     uint32
	Flags        isa.Flags
	BranchTaken  bool
	BranchTarget uint32
	// Aux carries POP's updated stack pointer: Result is the load address
	// (the old SP), Aux is the new SP, since the two target different
	// registers with different values (SPEC_FULL.md Open Question 3).
	Aux uint32
	Err error
}

// executeCycles returns the number of cycles inst occupies the Execute
// stage, per SPEC_FULL.md §4.4's default latency table: 1 cycle for every
// control/register-class op and ordinary integer ALU op, 4 for the integer
// division family (DVU/DVS/MOD), and 2-4 for float ops depending on how
// much work the FPU shape does.
func executeCycles(inst *isa.Instruction) uint64 {
	switch inst.Opty {
	case isa.OptyInteger:
		switch inst.IntOp {
		case isa.Dvu, isa.Dvs, isa.Mod:
			return 4
		}
		return 1
	case isa.OptyFloat:
		switch inst.FloatOp {
		case isa.Fdiv, isa.Fmod:
			return 4
		case isa.Fmul:
			return 3
		default:
			return 2
		}
	}
	return 1
}

// Execute evaluates inst given its already-forwarded operand values. aVal,
// bVal, cVal are the values of inst.ReadRegs()[0], [1], [2] respectively
// (the branch condition flags or jump-target register for control
// instructions, forwarded the same as any other operand so a CMP
// immediately followed by a conditional jump sees the right flags without
// waiting for writeback); cVal is only meaningful for an indexed store,
// the one shape with three read registers. regs is read directly only
// where SPEC_FULL.md treats the access as implicit rather than a named
// source operand (SP for stack-relative addressing).
func (s *ExecuteStage) Execute(inst *isa.Instruction, pc, aVal, bVal, cVal, destVal uint32, regs *RegFile) ExecuteResult {
	switch inst.Opty {
	case isa.OptyControl:
		return s.executeControl(inst, pc, aVal, bVal, cVal)
	case isa.OptyInteger:
		return s.executeInteger(inst, aVal, bVal, destVal)
	case isa.OptyFloat:
		return s.executeFloat(inst, aVal, bVal, destVal)
	case isa.OptyRegister:
		return s.executeRegister(inst, aVal, bVal, cVal, destVal, regs)
	}
	return ExecuteResult{}
}

// executeControl evaluates a control instruction. aVal is the forwarded
// value of ReadRegs()[0] (the jump-target register for a register-indirect
// jump, LP for RET, or ZF for a relative conditional jump); the
// conditional jumps' ZF and OF follow it, so they arrive as aVal/bVal for a
// relative jump and as bVal/cVal for a register-indirect one.
func (s *ExecuteStage) executeControl(inst *isa.Instruction, pc, aVal, bVal, cVal uint32) ExecuteResult {
	target := func() uint32 {
		if inst.Jump.Kind == isa.JumpRegister {
			return aVal
		}
		return uint32(int32(pc) + inst.Jump.Offset)
	}
	zf, of := aVal != 0, bVal != 0
	if inst.Jump.Kind == isa.JumpRegister {
		zf, of = bVal != 0, cVal != 0
	}

	switch inst.ControlOp {
	case isa.Nop:
		return ExecuteResult{}
	case isa.Halt:
		return ExecuteResult{}
	case isa.Jmp:
		return ExecuteResult{BranchTaken: true, BranchTarget: target()}
	case isa.Jsr:
		return ExecuteResult{BranchTaken: true, BranchTarget: target(), Result: pc + 4}
	case isa.Ret:
		return ExecuteResult{BranchTaken: true, BranchTarget: aVal}
	case isa.Jeq:
		return condResult(zf, target())
	case isa.Jne:
		return condResult(!zf, target())
	case isa.Jgt:
		return condResult(!zf && !of, target())
	case isa.Jlt:
		return condResult(of, target())
	case isa.Jge:
		return condResult(!of, target())
	case isa.Jle:
		return condResult(zf || of, target())
	}
	return ExecuteResult{}
}

func condResult(taken bool, target uint32) ExecuteResult {
	return ExecuteResult{BranchTaken: taken, BranchTarget: target}
}

// executeInteger evaluates an integer instruction. aVal and bVal are the
// instruction's two independent source operands (ReadRegs()[0] and [1]);
// destVal is unused except where a shape reads it directly (none do here).
// A ShapeBinary instruction in immediate form reads only aVal; bVal is
// replaced by the decoded ImmVal.
func (s *ExecuteStage) executeInteger(inst *isa.Instruction, aVal, bVal, destVal uint32) ExecuteResult {
	switch inst.IntOp.Shape() {
	case isa.ShapeBinary:
		rhs := bVal
		if inst.ImmediateForm {
			rhs = inst.ImmVal
		}
		result, flags, err := isa.IntegerBinary(inst.IntOp, aVal, rhs)
		return ExecuteResult{Result: result, Flags: flags, Err: err}
	case isa.ShapeUnary:
		return ExecuteResult{Result: isa.IntegerUnary(aVal)}
	case isa.ShapeSignExtend:
		return ExecuteResult{Result: isa.IntegerSignExtend(aVal, inst.FromWidth)}
	case isa.ShapeComp:
		return ExecuteResult{Flags: isa.IntegerCompare(aVal, bVal, inst.Signed)}
	case isa.ShapeTest:
		return ExecuteResult{Flags: isa.IntegerTest(aVal)}
	}
	return ExecuteResult{}
}

func (s *ExecuteStage) executeFloat(inst *isa.Instruction, aVal, bVal, destVal uint32) ExecuteResult {
	switch inst.FloatOp.Shape() {
	case isa.FShapeBinary:
		result, flags, err := isa.FloatBinary(inst.FloatOp, aVal, bVal)
		return ExecuteResult{Result: result, Flags: flags, Err: err}
	case isa.FShapeUnary:
		switch inst.FloatOp {
		case isa.Fneg:
			return ExecuteResult{Result: isa.FloatNeg(aVal)}
		case isa.Frec:
			result, flags := isa.FloatRec(aVal)
			return ExecuteResult{Result: result, Flags: flags}
		}
	case isa.FShapeConversion:
		switch inst.FloatOp {
		case isa.Itof:
			return ExecuteResult{Result: isa.IntToFloat(aVal)}
		case isa.Ftoi:
			result, flags, err := isa.FloatToInt(aVal)
			return ExecuteResult{Result: result, Flags: flags, Err: err}
		}
	case isa.FShapeComp:
		return ExecuteResult{Flags: isa.FloatCompare(aVal, bVal)}
	case isa.FShapeCheck:
		return ExecuteResult{Flags: isa.FloatCheck(aVal)}
	}
	return ExecuteResult{}
}

func (s *ExecuteStage) executeRegister(inst *isa.Instruction, aVal, bVal, cVal, destVal uint32, regs *RegFile) ExecuteResult {
	// ReadRegs() orders a load's operands [Base, Index] but a store's
	// [Dest, Base, Index] (the value being stored comes first), so Base
	// and Index land in different aVal/bVal/cVal slots depending on
	// direction; base/index here normalize that back to one shape.
	base, index := aVal, bVal
	if inst.RegOp == isa.Sbr || inst.RegOp == isa.Ssr || inst.RegOp == isa.Slr {
		base, index = bVal, cVal
	}
	addr := func() uint32 {
		switch inst.Mode.Base() {
		case isa.AddrZeroPage:
			return uint32(mem.ZeroPage)*mem.PageSize + uint32(inst.Offset)
		case isa.AddrStackOffset:
			return uint32(int32(regs.SP) + inst.Offset)
		case isa.AddrIndirect:
			return base
		case isa.AddrOffset:
			return uint32(int32(base) + inst.Offset)
		case isa.AddrIndexed:
			return base + index
		}
		return 0
	}

	switch inst.RegOp {
	case isa.Lbr, isa.Lsr, isa.Llr:
		return ExecuteResult{Result: addr()}
	case isa.Sbr, isa.Ssr, isa.Slr:
		return ExecuteResult{Result: addr(), StoreVal: destVal}
	case isa.Tfr:
		return ExecuteResult{Result: aVal}
	case isa.Push:
		// ReadRegs() = [Source, SP]: aVal is the value being pushed, bVal
		// the current SP.
		newSP := bVal - 4
		if newSP < uint32(mem.StackPage)*mem.PageSize {
			return ExecuteResult{Err: fmt.Errorf("%w: SP 0x%08X", ErrStackOverflow, bVal)}
		}
		return ExecuteResult{Result: newSP, StoreVal: aVal}
	case isa.Pop:
		// ReadRegs() = [SP] only, so the current SP arrives as aVal, not
		// bVal (which is 0 here, there being no second read operand).
		newSP := aVal + 4
		if newSP > uint32(mem.StackPage+1)*mem.PageSize {
			return ExecuteResult{Err: fmt.Errorf("%w: SP 0x%08X", ErrStackUnderflow, aVal)}
		}
		return ExecuteResult{Result: aVal, Aux: newSP}
	case isa.Ldr:
		if inst.ZeroPage {
			return ExecuteResult{Result: uint32(mem.ZeroPage)*mem.PageSize + uint32(inst.Offset)}
		}
		value := inst.Imm << (16 * inst.Shift)
		if inst.Zero {
			return ExecuteResult{Result: value}
		}
		return ExecuteResult{Result: destVal | value}
	}
	return ExecuteResult{}
}

// MemoryStage performs the data memory access for load/store instructions,
// optionally through a data cache. Volatile addressing modes bypass the
// cache and charge the cache's VolatilePenalty directly against memory
// (SPEC_FULL.md §4.3/Open Question 1: the volatile penalty replaces, rather
// than adds to, the miss penalty). With no data cache, every access,
// volatile or not, costs one cycle.
type MemoryStage struct {
	dcache *cache.Cache
	mem    *mem.Memory
}

// NewMemoryStage creates a memory stage backed by m, optionally through dcache.
func NewMemoryStage(m *mem.Memory, dcache *cache.Cache) *MemoryStage {
	return &MemoryStage{dcache: dcache, mem: m}
}

// MemoryResult holds the outcome of a Memory-stage access. Err is set by a
// misaligned short/word address (SPEC_FULL.md §7: MisalignedAccess halts
// the pipeline), checked uniformly here regardless of whether the access
// ends up routed through a cache or straight to memory.
type MemoryResult struct {
	Data   uint32
	Cycles uint64
	Err    error
}

// MemoryShape reports whether inst performs a memory load and/or store in
// the Memory stage, and at what width, covering PUSH/POP (which move data
// through the stack even though isa.RegisterOp.IsLoad/IsStore does not
// name them) and LDR's zero-page-translate variant alongside the ordinary
// LBR/SBR/LSR/SSR/LLR/SLR family.
func MemoryShape(inst *isa.Instruction) (load, store bool, width int) {
	if inst.Opty != isa.OptyRegister {
		return false, false, 0
	}
	switch inst.RegOp {
	case isa.Lbr, isa.Lsr, isa.Llr:
		return true, false, inst.RegOp.AccessWidth()
	case isa.Sbr, isa.Ssr, isa.Slr:
		return false, true, inst.RegOp.AccessWidth()
	case isa.Push:
		return false, true, 4
	case isa.Pop:
		return true, false, 4
	case isa.Ldr:
		// Both LDR variants are pure Execute-stage computations (an
		// immediate load or a zero-page address translation, never a
		// memory access): "loads the address of a zero-page slot, not
		// its contents."
		return false, false, 0
	}
	return false, false, 0
}

// Access performs the load or store named by inst at addr.
func (s *MemoryStage) Access(inst *isa.Instruction, addr, storeVal uint32) MemoryResult {
	load, store, width := MemoryShape(inst)
	if !load && !store {
		return MemoryResult{Cycles: 1}
	}

	if err := alignmentError(addr, width); err != nil {
		return MemoryResult{Cycles: 1, Err: err}
	}

	volatile := inst.Opty == isa.OptyRegister && inst.Mode.Volatile()

	if load {
		if volatile || s.dcache == nil {
			data, err := s.readDirect(addr, width)
			cycles := uint64(1)
			if volatile && s.dcache != nil {
				cycles = s.dcache.Config().VolatilePenalty
			}
			return MemoryResult{Data: data, Cycles: cycles, Err: err}
		}
		res := s.dcache.Read(addr, width)
		return MemoryResult{Data: uint32(res.Data), Cycles: res.Cycles}
	}

	if volatile || s.dcache == nil {
		err := s.writeDirect(addr, width, storeVal)
		cycles := uint64(1)
		if volatile && s.dcache != nil {
			cycles = s.dcache.Config().VolatilePenalty
		}
		return MemoryResult{Cycles: cycles, Err: err}
	}
	res := s.dcache.Write(addr, width, uint64(storeVal))
	return MemoryResult{Cycles: res.Cycles}
}

// alignmentError checks a short/word access's natural alignment, the same
// rule mem.Memory.Read16/Write16/Read32/Write32 enforce, applied up front
// so it catches a cached access too (the cache's own Read/Write never
// check alignment, since by the time an address reaches the directory it
// has already been truncated to a block address).
func alignmentError(addr uint32, width int) error {
	switch width {
	case 2:
		if addr%2 != 0 {
			return fmt.Errorf("%w: address 0x%08X is not 2-byte aligned", mem.ErrMisalignedAccess, addr)
		}
	case 4:
		if addr%4 != 0 {
			return fmt.Errorf("%w: address 0x%08X is not 4-byte aligned", mem.ErrMisalignedAccess, addr)
		}
	}
	return nil
}

func (s *MemoryStage) readDirect(addr uint32, width int) (uint32, error) {
	switch width {
	case 1:
		return uint32(s.mem.Read8(addr)), nil
	case 2:
		v, err := s.mem.Read16(addr)
		return uint32(v), err
	default:
		return s.mem.Read32(addr)
	}
}

func (s *MemoryStage) writeDirect(addr uint32, width int, v uint32) error {
	switch width {
	case 1:
		s.mem.Write8(addr, uint8(v))
		return nil
	case 2:
		return s.mem.Write16(addr, uint16(v))
	default:
		return s.mem.Write32(addr, v)
	}
}

// WritebackStage commits a completed instruction's result to the register
// file.
type WritebackStage struct {
	regs *RegFile
}

// NewWritebackStage creates a writeback stage writing to regs.
func NewWritebackStage(regs *RegFile) *WritebackStage {
	return &WritebackStage{regs: regs}
}

// Writeback writes value to every non-flag register in writeRegs and merges
// flags into every flag register named there.
func (s *WritebackStage) Writeback(writeRegs []isa.Reg, value uint32, flags isa.Flags) {
	for _, reg := range writeRegs {
		if !reg.IsFlag() {
			s.regs.Write(reg, value)
		}
	}
	s.regs.ApplyFlags(flags, writeRegs)
}
