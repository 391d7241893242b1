// Package pipeline implements SEIS's 5-stage (Fetch/Decode/Execute/Memory/
// Writeback) in-order pipeline, with hazard detection, forwarding, stalls,
// and squash-on-branch, generalized from the teacher's ARM64 pipeline to
// SEIS's four-class instruction set (SPEC_FULL.md §4.4).
package pipeline

import (
	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/isa"
	"github.com/sarchlab/seis/mem"
)

// Statistics holds pipeline performance statistics, in the teacher's
// Statistics/CPI() shape.
type Statistics struct {
	Cycles       uint64
	Instructions uint64
	Stalls       uint64
	Flushes      uint64
	FetchStalls  uint64
	ExecStalls   uint64
	MemStalls    uint64
	DataHazards  uint64
}

// CPI returns cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithICache attaches an instruction cache.
func WithICache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.icache = c }
}

// WithDCache attaches a data cache.
func WithDCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.dcache = c }
}

// WithPipeliningDisabled runs one instruction to completion at a time,
// still charging the same per-stage cycle costs, instead of overlapping
// stages (SPEC_FULL.md §4.4 pipelining=false, invariant 5).
func WithPipeliningDisabled() Option {
	return func(p *Pipeline) { p.pipeliningEnabled = false }
}

type memJob struct {
	active    bool
	remaining uint64
	result    MemoryResult
}

type execJob struct {
	active    bool
	remaining uint64
	result    EXMEMLatch
}

type fetchJob struct {
	active    bool
	pc        uint32
	remaining uint64
	word      uint32
}

// Pipeline is a single SEIS processor core.
type Pipeline struct {
	regs *RegFile
	mem  *mem.Memory

	icache *cache.Cache
	dcache *cache.Cache

	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage
	hazard         *HazardUnit

	ifid  IFIDLatch
	idex  IDEXLatch
	exmem EXMEMLatch
	memwb MEMWBLatch

	pc uint32

	pipeliningEnabled bool
	halted            bool
	haltReason        HaltReason
	err               error
	stats             Statistics

	memJob   memJob
	fetchJob fetchJob
	execJob  execJob
}

// New creates a Pipeline over m, with the given options applied.
func New(m *mem.Memory, opts ...Option) *Pipeline {
	regs := &RegFile{}
	p := &Pipeline{
		regs:              regs,
		mem:               m,
		pipeliningEnabled: true,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.fetchStage = NewFetchStage(m, p.icache)
	p.decodeStage = NewDecodeStage(regs, NewHazardUnit())
	p.executeStage = NewExecuteStage()
	p.memoryStage = NewMemoryStage(m, p.dcache)
	p.writebackStage = NewWritebackStage(regs)
	p.hazard = NewHazardUnit()

	return p
}

// Regs returns the pipeline's register file.
func (p *Pipeline) Regs() *RegFile { return p.regs }

// Stats returns a snapshot of the pipeline's statistics.
func (p *Pipeline) Stats() Statistics { return p.stats }

// Halted reports whether the pipeline has stopped.
func (p *Pipeline) Halted() bool { return p.halted }

// HaltReason reports why the pipeline stopped.
func (p *Pipeline) HaltReason() HaltReason { return p.haltReason }

// Err returns the error that halted the pipeline, if any.
func (p *Pipeline) Err() error { return p.err }

// PC returns the address of the next instruction to fetch.
func (p *Pipeline) PC() uint32 { return p.pc }

// Stages returns a snapshot of each stage's latch, keyed by stage name,
// for the driver's `pipe` inspection command (SPEC_FULL.md §4.5).
func (p *Pipeline) Stages() map[string]any {
	return map[string]any{
		"fetch":     p.ifid,
		"decode":    p.idex,
		"execute":   p.exmem,
		"writeback": p.memwb,
	}
}

// Mem returns the pipeline's backing memory.
func (p *Pipeline) Mem() *mem.Memory { return p.mem }

// SetPC sets the address of the next instruction to fetch and clears all
// in-flight pipeline state.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.regs.PC = pc
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.memJob = memJob{}
	p.fetchJob = fetchJob{}
	p.execJob = execJob{}
	p.halted = false
	p.haltReason = HaltNone
	p.err = nil
}

// Clock runs the pipeline for up to n cycles, stopping early if it halts.
func (p *Pipeline) Clock(n uint64) {
	for i := uint64(0); i < n && !p.halted; i++ {
		if p.pipeliningEnabled {
			p.tickPipelined()
		} else {
			p.tickSerial()
		}
	}
}

// Run clocks the pipeline until it halts.
func (p *Pipeline) Run() {
	for !p.halted {
		if p.pipeliningEnabled {
			p.tickPipelined()
		} else {
			p.tickSerial()
		}
	}
}

// tickPipelined advances all five stages by one cycle, each reading the
// latch values left by the previous cycle and writing the next cycle's
// latch values only once every stage has been evaluated against the old
// state, so a stage never observes a latch another stage updated this
// same tick — except Decode, which forwards from this tick's freshly
// computed Execute and Memory outputs (see the note at its call below).
func (p *Pipeline) tickPipelined() {
	p.stats.Cycles++

	old := struct {
		ifid  IFIDLatch
		idex  IDEXLatch
		exmem EXMEMLatch
		memwb MEMWBLatch
	}{p.ifid, p.idex, p.exmem, p.memwb}

	p.retire(old.memwb)

	newMemWB, memAdvances := p.stepMemory(old.exmem)

	newExMem := old.exmem
	exAdvances := false
	branchTaken := false
	var branchTarget uint32
	if memAdvances {
		newExMem, exAdvances = p.stepExecute(old.idex)
		if newExMem.BranchTaken {
			branchTaken = true
			branchTarget = newExMem.BranchTarget
		}
	}

	newIdEx := old.idex
	idAdvances := false
	if exAdvances {
		idAdvances = true
		if old.ifid.Valid() {
			if p.hazard.LoadUseHazard(&old.idex, decodeReadsOrNil(old.ifid.Word)) {
				newIdEx = IDEXLatch{}
				idAdvances = false
				p.stats.DataHazards++
				p.stats.Stalls++
			} else {
				// Forward from newExMem/newMemWB, this same tick's freshly
				// computed Execute/Memory outputs, not old.exmem/old.memwb
				// (the latch values from the previous tick) — the producer
				// immediately preceding this instruction is still mid-tick
				// in EX/MEM right now, one tick before its result reaches
				// those latches.
				newIdEx = p.stepDecode(old.ifid, newExMem, newMemWB)
			}
		} else {
			newIdEx = IDEXLatch{}
		}
	}

	newIfId := old.ifid
	if idAdvances {
		newIfId = p.stepFetch()
	}

	if branchTaken {
		newIfId = IFIDLatch{State: Squashed}
		newIdEx = IDEXLatch{State: Squashed}
		p.pc = branchTarget
		p.fetchJob = fetchJob{}
		p.stats.Flushes++
	}

	p.memwb = newMemWB
	p.exmem = newExMem
	p.idex = newIdEx
	p.ifid = newIfId
	p.regs.PC = p.pc
}

// tickSerial runs one instruction at a time to completion, still charging
// the same per-stage cycle costs as the pipelined path but never
// overlapping stages (SPEC_FULL.md invariant 5: same instruction count,
// different cycle count).
func (p *Pipeline) tickSerial() {
	word, fetchCycles := p.fetchStage.Fetch(p.pc)
	pcAtFetch := p.pc
	p.stats.Cycles += fetchCycles

	inst, err := isa.Decode(word)
	p.stats.Cycles++
	if err != nil {
		p.halted = true
		p.haltReason = HaltError
		p.err = err
		return
	}

	reads := inst.ReadRegs()
	var a, b, c, dest uint32
	if len(reads) > 0 {
		a = p.regs.Read(reads[0])
	}
	if len(reads) > 1 {
		b = p.regs.Read(reads[1])
	}
	if len(reads) > 2 {
		c = p.regs.Read(reads[2])
	}
	dest = p.regs.Read(inst.Dest)

	res := p.executeStage.Execute(inst, pcAtFetch, a, b, c, dest, p.regs)
	p.stats.Cycles += executeCycles(inst)
	if res.Err != nil {
		p.halted = true
		p.haltReason = HaltError
		p.err = res.Err
		return
	}

	var memData uint32
	load, store, _ := MemoryShape(inst)
	if load || store {
		memRes := p.memoryStage.Access(inst, res.Result, res.StoreVal)
		p.stats.Cycles += memRes.Cycles
		if memRes.Err != nil {
			p.halted = true
			p.haltReason = HaltError
			p.err = memRes.Err
			return
		}
		memData = memRes.Data
	} else {
		p.stats.Cycles++
	}

	p.commitWriteback(inst, inst.WriteRegs(), res.Result, memData, load, res.Aux, res.Flags)
	p.stats.Cycles++
	p.stats.Instructions++

	if inst.Opty == isa.OptyControl && res.BranchTaken {
		p.pc = res.BranchTarget
	} else {
		p.pc = pcAtFetch + 4
	}
	p.regs.PC = p.pc

	if inst.Opty == isa.OptyControl && inst.ControlOp == isa.Halt {
		p.halted = true
		p.haltReason = HaltInstruction
	}
}

func decodeReadsOrNil(word uint32) []isa.Reg {
	inst, err := isa.Decode(word)
	if err != nil {
		return nil
	}
	return append(inst.ReadRegs(), inst.Dest)
}

func (p *Pipeline) retire(memwb MEMWBLatch) {
	if !memwb.Valid() {
		return
	}
	if memwb.Err != nil {
		p.halted = true
		p.haltReason = HaltError
		p.err = memwb.Err
		return
	}

	p.commitWriteback(memwb.Inst, memwb.WriteRegs, memwb.Result, memwb.MemData, memwb.FromMem, memwb.Aux, memwb.Flags)
	p.stats.Instructions++

	if memwb.Inst != nil && memwb.Inst.Opty == isa.OptyControl && memwb.Inst.ControlOp == isa.Halt {
		p.halted = true
		p.haltReason = HaltInstruction
	}
}

// commitWriteback writes an instruction's result(s) to the register file.
// POP is special-cased: its destination register takes the loaded value
// while SP takes the independently computed new stack pointer (aux), since
// WritebackStage.Writeback otherwise broadcasts a single value to every
// register an instruction names.
func (p *Pipeline) commitWriteback(inst *isa.Instruction, writeRegs []isa.Reg, result, memData uint32, fromMem bool, aux uint32, flags isa.Flags) {
	if inst != nil && inst.Opty == isa.OptyRegister && inst.RegOp == isa.Pop {
		p.regs.Write(inst.Dest, memData)
		p.regs.Write(isa.SP, aux)
		return
	}
	value := result
	if fromMem {
		value = memData
	}
	p.writebackStage.Writeback(writeRegs, value, flags)
}

func (p *Pipeline) stepMemory(exmem EXMEMLatch) (MEMWBLatch, bool) {
	if !exmem.Valid() {
		return MEMWBLatch{}, true
	}
	if exmem.Err != nil {
		return MEMWBLatch{PC: exmem.PC, Inst: exmem.Inst, Err: exmem.Err, State: Ready}, true
	}

	if !p.memJob.active {
		res := p.memoryStage.Access(exmem.Inst, exmem.ALUResult, exmem.StoreVal)
		if res.Cycles <= 1 {
			return p.completeMemory(exmem, res), true
		}
		p.memJob = memJob{active: true, remaining: res.Cycles - 1, result: res}
		p.stats.MemStalls += res.Cycles - 1
		p.stats.Stalls += res.Cycles - 1
		return MEMWBLatch{}, false
	}

	p.memJob.remaining--
	if p.memJob.remaining == 0 {
		res := p.memJob.result
		p.memJob = memJob{}
		return p.completeMemory(exmem, res), true
	}
	return MEMWBLatch{}, false
}

func (p *Pipeline) completeMemory(exmem EXMEMLatch, res MemoryResult) MEMWBLatch {
	fromMem := false
	if exmem.Inst != nil {
		fromMem, _, _ = MemoryShape(exmem.Inst)
	}
	return MEMWBLatch{
		State:     Ready,
		PC:        exmem.PC,
		Inst:      exmem.Inst,
		Result:    exmem.ALUResult,
		MemData:   res.Data,
		FromMem:   fromMem,
		Flags:     exmem.Flags,
		Aux:       exmem.Aux,
		WriteRegs: exmem.WriteRegs,
		Err:       res.Err,
	}
}

// stepExecute runs the Execute stage for one cycle against idex, the
// instruction Decode most recently handed it. An op with a multi-cycle
// latency (division, most float ops; see executeCycles) occupies the stage
// for several ticks: the first tick computes and caches the result and
// charges the remaining cycles as stalls, then stepExecute reports Busy and
// holds idex's input (mirroring stepFetch/stepMemory's fetchJob/memJob) on
// every subsequent tick until the job's remaining count reaches zero, at
// which point the cached EXMEMLatch is finally delivered.
func (p *Pipeline) stepExecute(idex IDEXLatch) (EXMEMLatch, bool) {
	if !idex.Valid() {
		return EXMEMLatch{}, true
	}
	if idex.Err != nil {
		return EXMEMLatch{State: Ready, PC: idex.PC, Inst: idex.Inst, Err: idex.Err}, true
	}

	if !p.execJob.active {
		cycles := executeCycles(idex.Inst)
		res := p.completeExecute(idex)
		if cycles <= 1 {
			return res, true
		}
		p.execJob = execJob{active: true, remaining: cycles - 1, result: res}
		p.stats.ExecStalls += cycles - 1
		p.stats.Stalls += cycles - 1
		return EXMEMLatch{State: Busy}, false
	}

	p.execJob.remaining--
	if p.execJob.remaining == 0 {
		res := p.execJob.result
		p.execJob = execJob{}
		return res, true
	}
	return EXMEMLatch{State: Busy}, false
}

func (p *Pipeline) completeExecute(idex IDEXLatch) EXMEMLatch {
	res := p.executeStage.Execute(idex.Inst, idex.PC, idex.AVal, idex.BVal, idex.CVal, idex.DestVal, p.regs)
	return EXMEMLatch{
		State:        Ready,
		PC:           idex.PC,
		Inst:         idex.Inst,
		ALUResult:    res.Result,
		StoreVal:     res.StoreVal,
		Flags:        res.Flags,
		Aux:          res.Aux,
		WriteRegs:    idex.WriteRegs,
		BranchTaken:  res.BranchTaken,
		BranchTarget: res.BranchTarget,
		Err:          res.Err,
	}
}

func (p *Pipeline) stepDecode(ifid IFIDLatch, exmem EXMEMLatch, memwb MEMWBLatch) IDEXLatch {
	inst, ops, err := p.decodeStage.Decode(ifid.Word, &exmem, &memwb)
	if err != nil {
		return IDEXLatch{State: Ready, PC: ifid.PC, Err: err}
	}
	return IDEXLatch{
		State:     Ready,
		PC:        ifid.PC,
		Inst:      inst,
		AVal:      ops.A,
		BVal:      ops.B,
		CVal:      ops.C,
		DestVal:   ops.Dest,
		ReadRegs:  inst.ReadRegs(),
		WriteRegs: inst.WriteRegs(),
	}
}

func (p *Pipeline) stepFetch() IFIDLatch {
	if !p.fetchJob.active {
		// Structural hazard (SPEC_FULL.md §4.4): Memory has priority over
		// Fetch when both would need the shared backing store this tick.
		// An access already in flight keeps running; only a new fetch is
		// held off.
		if p.memJob.active {
			p.stats.FetchStalls++
			p.stats.Stalls++
			return IFIDLatch{State: Busy}
		}
		word, cycles := p.fetchStage.Fetch(p.pc)
		if cycles <= 1 {
			out := IFIDLatch{State: Ready, PC: p.pc, Word: word}
			p.pc += 4
			return out
		}
		p.fetchJob = fetchJob{active: true, pc: p.pc, remaining: cycles - 1, word: word}
		p.stats.FetchStalls += cycles - 1
		p.stats.Stalls += cycles - 1
		return IFIDLatch{State: Busy}
	}

	p.fetchJob.remaining--
	if p.fetchJob.remaining == 0 {
		out := IFIDLatch{State: Ready, PC: p.fetchJob.pc, Word: p.fetchJob.word}
		p.pc = p.fetchJob.pc + 4
		p.fetchJob = fetchJob{}
		return out
	}
	return IFIDLatch{State: Busy}
}
