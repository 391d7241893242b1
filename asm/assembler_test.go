package asm_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/asm"
	"github.com/sarchlab/seis/isa"
)

func decodeWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return words
}

var _ = Describe("Assembler", func() {
	It("assembles the immediate-sum scenario", func() {
		img, err := asm.Assemble(`
			LDR 5 => V0
			LDR 7 => V1
			ADD V0,V1 => V2
			HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(img.Placements).To(HaveLen(1))
		Expect(img.Placements[0].Addr).To(Equal(uint32(0)))

		words := decodeWords(img.Placements[0].Data)
		Expect(words).To(HaveLen(4))

		add, decErr := isa.Decode(words[2])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(add.IntOp).To(Equal(isa.Add))
		Expect(add.A).To(Equal(isa.V0))
		Expect(add.B).To(Equal(isa.V1))
		Expect(add.Dest).To(Equal(isa.V2))

		halt, decErr := isa.Decode(words[3])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(halt.ControlOp).To(Equal(isa.Halt))
	})

	It("assembles ADD in immediate form", func() {
		img, err := asm.Assemble(`
			LDR 5 => V0
			ADD V0,#7 => V1
			HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)
		Expect(words).To(HaveLen(3))

		add, decErr := isa.Decode(words[1])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(add.IntOp).To(Equal(isa.Add))
		Expect(add.ImmediateForm).To(BeTrue())
		Expect(add.ImmVal).To(Equal(uint32(7)))
		Expect(add.A).To(Equal(isa.V0))
		Expect(add.Dest).To(Equal(isa.V1))
	})

	It("rejects an out-of-range ADD immediate", func() {
		_, err := asm.Assemble(`ADD V0,#9000 => V1`)
		Expect(err).To(HaveOccurred())
	})

	It("resolves a forward-referenced label in a relative jump", func() {
		img, err := asm.Assemble(`
			JMP target
			NOP
			target:
			HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)
		jmp, decErr := isa.Decode(words[0])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(jmp.Jump.Kind).To(Equal(isa.JumpRelative))
		Expect(jmp.Jump.Offset).To(Equal(int32(8)))
	})

	It("expands LOAD into a single LDR padded with NOP when the value fits in 16 bits", func() {
		img, err := asm.Assemble(`LOAD 42 => V0`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)
		Expect(words).To(HaveLen(2))

		ldr, decErr := isa.Decode(words[0])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(ldr.RegOp).To(Equal(isa.Ldr))
		Expect(ldr.Imm).To(Equal(uint32(42)))

		nop, decErr := isa.Decode(words[1])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(nop.ControlOp).To(Equal(isa.Nop))
	})

	It("expands LOAD into a low/high LDR pair for a value that needs all 32 bits", func() {
		img, err := asm.Assemble(`LOAD 0x12345678 => V1`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)
		Expect(words).To(HaveLen(2))

		low, decErr := isa.Decode(words[0])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(low.Zero).To(BeTrue())
		Expect(low.Imm).To(Equal(uint32(0x5678)))

		high, decErr := isa.Decode(words[1])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(high.Zero).To(BeFalse())
		Expect(high.Shift).To(Equal(uint8(1)))
		Expect(high.Imm).To(Equal(uint32(0x1234)))
	})

	It("resolves a named constant used by LOAD", func() {
		img, err := asm.Assemble(`
			LIMIT = 100
			LOAD LIMIT => V3
		`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)
		ldr, decErr := isa.Decode(words[0])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(ldr.Imm).To(Equal(uint32(100)))
	})

	It("emits .word data at the requested .org address", func() {
		img, err := asm.Assemble(`
			.org 0x2000
			DATA:
			.word 9,4,1,2
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(img.Placements).To(HaveLen(1))
		Expect(img.Placements[0].Addr).To(Equal(uint32(0x2000)))
		words := decodeWords(img.Placements[0].Data)
		Expect(words).To(Equal([]uint32{9, 4, 1, 2}))
	})

	It("parses zero-page and indexed addressing for loads and stores", func() {
		img, err := asm.Assemble(`
			LBR $0x10 => V0
			SBR V1 => (V2,V3)
			HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		words := decodeWords(img.Placements[0].Data)

		lbr, decErr := isa.Decode(words[0])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(lbr.Mode).To(Equal(isa.AddrZeroPage))
		Expect(lbr.Offset).To(Equal(int32(0x10)))
		Expect(lbr.Dest).To(Equal(isa.V0))

		sbr, decErr := isa.Decode(words[1])
		Expect(decErr).NotTo(HaveOccurred())
		Expect(sbr.Mode).To(Equal(isa.AddrIndexed))
		Expect(sbr.Base).To(Equal(isa.V2))
		Expect(sbr.Index).To(Equal(isa.V3))
		Expect(sbr.Dest).To(Equal(isa.V1))
	})

	It("collects every error instead of stopping at the first", func() {
		_, err := asm.Assemble(`
			ADD V0 => V1
			BOGUS V9
		`)

		Expect(err).To(HaveOccurred())
		errs, ok := err.(asm.Errors)
		Expect(ok).To(BeTrue())
		Expect(errs).To(HaveLen(2))
		Expect(errs[0].Line).To(Equal(2))
		Expect(errs[1].Line).To(Equal(3))
	})

	It("rejects an undefined symbol with its source line", func() {
		_, err := asm.Assemble(`LOAD MISSING => V0`)

		Expect(err).To(HaveOccurred())
		errs, ok := err.(asm.Errors)
		Expect(ok).To(BeTrue())
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Line).To(Equal(1))
	})
})
