package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/isa"
	"github.com/sarchlab/seis/mem"
	"github.com/sarchlab/seis/pipeline"
)

func ldrImm(dest isa.Reg, value uint32) uint32 {
	return isa.Encode(&isa.Instruction{
		Opty: isa.OptyRegister, RegOp: isa.Ldr,
		Dest: dest, Imm: value, Zero: true,
	})
}

func add3(a, b, dest isa.Reg) uint32 {
	return isa.Encode(&isa.Instruction{
		Opty: isa.OptyInteger, IntOp: isa.Add, A: a, B: b, Dest: dest,
	})
}

func halt() uint32 {
	return isa.Encode(&isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Halt})
}

func loadProgram(m *mem.Memory, words []uint32) {
	for i, w := range words {
		_ = m.Write32(uint32(i*4), w)
	}
}

var _ = Describe("Pipeline", func() {
	var m *mem.Memory

	BeforeEach(func() {
		m = mem.NewMemory()
	})

	It("retires a straight-line program and updates the register file", func() {
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 5),
			ldrImm(isa.V1, 7),
			add3(isa.V0, isa.V1, isa.V1),
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Halted()).To(BeTrue())
		Expect(p.HaltReason()).To(Equal(pipeline.HaltInstruction))
		Expect(p.Regs().V[1]).To(Equal(uint32(12)))
		Expect(p.Stats().Instructions).To(Equal(uint64(4)))
	})

	It("executes an ADD in immediate form", func() {
		addImm := isa.Encode(&isa.Instruction{
			Opty: isa.OptyInteger, IntOp: isa.Add, A: isa.V0,
			ImmediateForm: true, ImmVal: 7, Dest: isa.V1,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 5),
			addImm,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[1]).To(Equal(uint32(12)))
		Expect(p.Stats().Instructions).To(Equal(uint64(3)))
	})

	It("produces the same instruction count with pipelining disabled", func() {
		words := []uint32{
			ldrImm(isa.V0, 1),
			ldrImm(isa.V1, 2),
			add3(isa.V0, isa.V1, isa.V1),
			halt(),
		}
		loadProgram(m, words)

		piped := pipeline.New(m)
		piped.SetPC(0)
		piped.Run()

		m2 := mem.NewMemory()
		loadProgram(m2, words)
		serial := pipeline.New(m2, pipeline.WithPipeliningDisabled())
		serial.SetPC(0)
		serial.Run()

		Expect(serial.Stats().Instructions).To(Equal(piped.Stats().Instructions))
		Expect(serial.Regs().V[1]).To(Equal(piped.Regs().V[1]))
		Expect(serial.Stats().Cycles).To(BeNumerically(">=", piped.Stats().Cycles))
	})

	It("stalls one cycle on a load-use hazard then forwards correctly", func() {
		loadInst := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Lbr, Mode: isa.AddrZeroPage,
			Dest: isa.V0, Offset: 0,
		})
		_ = m.Write32(uint32(mem.ZeroPage)*mem.PageSize, 9)

		loadProgram(m, []uint32{
			loadInst,
			add3(isa.V0, isa.V1, isa.V1),
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[1]).To(Equal(uint32(9)))
		Expect(p.Stats().DataHazards).To(BeNumerically(">", 0))
	})

	It("squashes the delay slot on a taken branch", func() {
		cmp := isa.Encode(&isa.Instruction{Opty: isa.OptyInteger, IntOp: isa.Cmp, A: isa.V0, B: isa.V0, Signed: true})
		jeq := isa.Encode(&isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Jeq, Jump: isa.Jump{Kind: isa.JumpRelative, Offset: 8}})
		wrongPath := add3(isa.V0, isa.V1, isa.V1) // would wrongly bump V1 if not squashed
		loadProgram(m, []uint32{
			cmp,
			jeq,
			wrongPath,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[1]).To(Equal(uint32(0)))
		Expect(p.Stats().Flushes).To(BeNumerically(">", 0))
	})

	It("charges a cache miss penalty through the data cache on a load", func() {
		dcache := cache.New(cache.Config{
			Enabled: true, SetBits: 2, OffsetBits: 4, Ways: 2,
			MissPenalty: 8, VolatilePenalty: 2,
		}, m)

		loadInst := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Llr, Mode: isa.AddrZeroPage,
			Dest: isa.V0, Offset: 0,
		})
		_ = m.Write32(uint32(mem.ZeroPage)*mem.PageSize, 42)
		loadProgram(m, []uint32{loadInst, halt()})

		p := pipeline.New(m, pipeline.WithDCache(dcache))
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[0]).To(Equal(uint32(42)))
		Expect(p.Stats().MemStalls).To(BeNumerically(">", 0))
	})

	It("pushes then pops a value, restoring SP and the stored register", func() {
		push := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Push, Source: isa.V0,
		})
		pop := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Pop, Dest: isa.V1,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 99),
			push,
			pop,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		startSP := p.Regs().SP
		p.Run()

		Expect(p.Regs().V[1]).To(Equal(uint32(99)))
		Expect(p.Regs().SP).To(Equal(startSP))
	})

	It("halts with a stack overflow when PUSH drives SP below the stack page", func() {
		push := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Push, Source: isa.V0,
		})
		loadProgram(m, []uint32{push, halt()})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Regs().SP = uint32(mem.StackPage) * mem.PageSize
		p.Run()

		Expect(p.HaltReason()).To(Equal(pipeline.HaltError))
		Expect(p.Err()).To(MatchError(pipeline.ErrStackOverflow))
	})

	It("halts with a stack underflow when POP drives SP past the top of the stack page", func() {
		pop := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Pop, Dest: isa.V0,
		})
		loadProgram(m, []uint32{pop, halt()})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Regs().SP = uint32(mem.StackPage+1) * mem.PageSize
		p.Run()

		Expect(p.HaltReason()).To(Equal(pipeline.HaltError))
		Expect(p.Err()).To(MatchError(pipeline.ErrStackUnderflow))
	})

	It("halts with a misaligned-access error on a short load from an odd address", func() {
		lsr := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Lsr, Mode: isa.AddrIndirect,
			Dest: isa.V0, Base: isa.V1,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V1, 5),
			lsr,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.HaltReason()).To(Equal(pipeline.HaltError))
		Expect(p.Err()).To(MatchError(mem.ErrMisalignedAccess))
	})

	It("halts with a misaligned-access error on a short store through a data cache", func() {
		ssr := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Ssr, Mode: isa.AddrIndirect,
			Dest: isa.V0, Base: isa.V1,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V1, 5),
			ssr,
			halt(),
		})

		dcache := cache.New(cache.Config{
			Enabled: true, SetBits: 2, OffsetBits: 4, Ways: 2,
			MissPenalty: 10, VolatilePenalty: 4,
		}, m)
		p := pipeline.New(m, pipeline.WithDCache(dcache))
		p.SetPC(0)
		p.Run()

		Expect(p.HaltReason()).To(Equal(pipeline.HaltError))
		Expect(p.Err()).To(MatchError(mem.ErrMisalignedAccess))
	})

	It("resolves an indexed store to Base+Index rather than the stored value", func() {
		store := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Ssr, Mode: isa.AddrIndexed,
			Dest: isa.V0, Base: isa.V1, Index: isa.V2,
		})
		load := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Lsr, Mode: isa.AddrIndexed,
			Dest: isa.V3, Base: isa.V1, Index: isa.V2,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 0xBEEF),
			ldrImm(isa.V1, 100),
			ldrImm(isa.V2, 4),
			store,
			load,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[3] & 0xFFFF).To(Equal(uint32(0xBEEF)))
	})

	It("adds two distinct source registers into a third, leaving the sources untouched", func() {
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 5),
			ldrImm(isa.V1, 7),
			add3(isa.V0, isa.V1, isa.V2),
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[0]).To(Equal(uint32(5)))
		Expect(p.Regs().V[1]).To(Equal(uint32(7)))
		Expect(p.Regs().V[2]).To(Equal(uint32(12)))
	})

	It("stalls the Execute stage for several cycles on an integer division", func() {
		dvu := isa.Encode(&isa.Instruction{
			Opty: isa.OptyInteger, IntOp: isa.Dvu, A: isa.V0, B: isa.V1, Dest: isa.V2,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V0, 20),
			ldrImm(isa.V1, 4),
			dvu,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[2]).To(Equal(uint32(5)))
		Expect(p.Stats().ExecStalls).To(BeNumerically(">", 0))
		Expect(p.Stats().Instructions).To(Equal(uint64(4)))
	})

	It("stalls the Execute stage for several cycles on a float divide", func() {
		fdiv := isa.Encode(&isa.Instruction{
			Opty: isa.OptyFloat, FloatOp: isa.Fdiv, A: isa.V0, B: isa.V1, Dest: isa.V2,
		})
		loadProgram(m, []uint32{
			ldrImm(isa.V0, isa.IntToFloat(8)),
			ldrImm(isa.V1, isa.IntToFloat(2)),
			fdiv,
			halt(),
		})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Stats().ExecStalls).To(BeNumerically(">", 0))
		Expect(p.Stats().Instructions).To(Equal(uint64(4)))
	})

	It("loads a zero-page address, not the contents stored there", func() {
		_ = m.Write32(uint32(mem.ZeroPage)*mem.PageSize+8, 0xDEADBEEF)

		zpAddr := isa.Encode(&isa.Instruction{
			Opty: isa.OptyRegister, RegOp: isa.Ldr, Dest: isa.V0,
			ZeroPage: true, Offset: 8,
		})
		loadProgram(m, []uint32{zpAddr, halt()})

		p := pipeline.New(m)
		p.SetPC(0)
		p.Run()

		Expect(p.Regs().V[0]).To(Equal(uint32(mem.ZeroPage)*mem.PageSize + 8))
	})
})
