package pipeline

import "github.com/sarchlab/seis/isa"

// LatchState is the per-stage state described in SPEC_FULL.md §4.4:
// a latch is either empty (Bubble), busy finishing a multi-cycle job
// (Busy), holding a result ready to advance at the end of this tick
// (Ready), or has been discarded by a control hazard (Squashed). This
// enum is grounded on original_source/libpipe's Clock/Status<T> model,
// which names the same four outcomes explicitly (see DESIGN.md).
type LatchState uint8

const (
	Bubble LatchState = iota
	Busy
	Ready
	Squashed
)

// IFIDLatch carries state from Fetch to Decode.
type IFIDLatch struct {
	State LatchState
	PC    uint32
	Word  uint32
}

// Clear resets the latch to an empty bubble.
func (l *IFIDLatch) Clear() { *l = IFIDLatch{} }

// IDEXLatch carries state from Decode to Execute.
type IDEXLatch struct {
	State LatchState
	PC    uint32
	Inst  *isa.Instruction

	// Operand values as resolved (post-forwarding) at Decode. CVal is
	// only meaningful for an indexed store (the one shape with three
	// read registers).
	AVal, BVal, CVal, DestVal uint32
	// StoreVal is not set by Decode: a store's value is resolved into
	// DestVal (possibly via forwarding) and reaches memory as
	// ExecuteResult.StoreVal.
	StoreVal uint32

	ReadRegs  []isa.Reg
	WriteRegs []isa.Reg

	// Err carries a decode error through to Writeback, where it halts the
	// pipeline (SPEC_FULL.md §7).
	Err error
}

// Clear resets the latch to an empty bubble.
func (l *IDEXLatch) Clear() { *l = IDEXLatch{} }

// EXMEMLatch carries state from Execute to Memory.
type EXMEMLatch struct {
	State LatchState
	PC    uint32
	Inst  *isa.Instruction

	ALUResult uint32
	StoreVal  uint32
	Flags     isa.Flags
	// Aux carries POP's new stack pointer value, distinct from ALUResult
	// (the load address); see ExecuteResult.Aux.
	Aux uint32

	WriteRegs []isa.Reg

	// BranchTaken/BranchTarget are set by Execute when a control
	// instruction resolves this tick; consumed by Fetch/Decode to
	// squash and redirect (SPEC_FULL.md §4.4 "Control" hazard).
	BranchTaken  bool
	BranchTarget uint32

	Err error
}

// Clear resets the latch to an empty bubble.
func (l *EXMEMLatch) Clear() { *l = EXMEMLatch{} }

// MEMWBLatch carries state from Memory to Writeback.
type MEMWBLatch struct {
	State LatchState
	PC    uint32
	Inst  *isa.Instruction

	Result    uint32
	MemData   uint32
	FromMem   bool
	Flags     isa.Flags
	Aux       uint32
	WriteRegs []isa.Reg

	Err error
}

// Clear resets the latch to an empty bubble.
func (l *MEMWBLatch) Clear() { *l = MEMWBLatch{} }

// Valid reports whether the latch holds a completed instruction ready to
// move to the next stage; Bubble, Busy, and Squashed latches are not.
func (l *IFIDLatch) Valid() bool  { return l.State == Ready }
func (l *IDEXLatch) Valid() bool  { return l.State == Ready }
func (l *EXMEMLatch) Valid() bool { return l.State == Ready }
func (l *MEMWBLatch) Valid() bool { return l.State == Ready }
