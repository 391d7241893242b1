package isa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/isa"
)

var _ = Describe("Codec", func() {
	Describe("Control class", func() {
		It("round-trips NOP", func() {
			in := &isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Nop}
			word := isa.Encode(in)
			out, err := isa.Decode(word)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ControlOp).To(Equal(isa.Nop))
		})

		It("round-trips HALT", func() {
			in := &isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Halt}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ControlOp).To(Equal(isa.Halt))
		})

		It("round-trips a register jump", func() {
			in := &isa.Instruction{
				Opty:      isa.OptyControl,
				ControlOp: isa.Jmp,
				Jump:      isa.Jump{Kind: isa.JumpRegister, Target: isa.V3},
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Jump.Kind).To(Equal(isa.JumpRegister))
			Expect(out.Jump.Target).To(Equal(isa.V3))
		})

		It("round-trips a relative jump with a negative offset", func() {
			in := &isa.Instruction{
				Opty:      isa.OptyControl,
				ControlOp: isa.Jeq,
				Jump:      isa.Jump{Kind: isa.JumpRelative, Offset: -16},
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Jump.Kind).To(Equal(isa.JumpRelative))
			Expect(out.Jump.Offset).To(Equal(int32(-16)))
		})

		It("rejects an unknown control opcode", func() {
			// OPTY=control, opcode bits = 0b0101 = 5, which is unused.
			word := uint32(5) << 25
			_, err := isa.Decode(word)

			Expect(err).To(MatchError(isa.ErrDecodeError))
		})
	})

	Describe("Integer class", func() {
		It("round-trips ADD with three distinct registers", func() {
			in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: isa.Add, A: isa.V1, B: isa.V3, Dest: isa.V2}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.IntOp).To(Equal(isa.Add))
			Expect(out.A).To(Equal(isa.V1))
			Expect(out.B).To(Equal(isa.V3))
			Expect(out.Dest).To(Equal(isa.V2))
		})

		It("round-trips ADD in immediate form", func() {
			in := &isa.Instruction{
				Opty: isa.OptyInteger, IntOp: isa.Add, A: isa.V1,
				ImmediateForm: true, ImmVal: 8191, Dest: isa.V2,
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ImmediateForm).To(BeTrue())
			Expect(out.ImmVal).To(Equal(uint32(8191)))
			Expect(out.A).To(Equal(isa.V1))
			Expect(out.Dest).To(Equal(isa.V2))
		})

		It("round-trips SUB in immediate form with a small value", func() {
			in := &isa.Instruction{
				Opty: isa.OptyInteger, IntOp: isa.Sub, A: isa.V4,
				ImmediateForm: true, ImmVal: 3, Dest: isa.V5,
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ImmediateForm).To(BeTrue())
			Expect(out.ImmVal).To(Equal(uint32(3)))
		})

		It("round-trips CMP with the signed bit set", func() {
			in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: isa.Cmp, Signed: true, A: isa.V4, B: isa.V5}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Signed).To(BeTrue())
			Expect(out.A).To(Equal(isa.V4))
			Expect(out.B).To(Equal(isa.V5))
		})

		It("round-trips SXT with its source width", func() {
			in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: isa.Sxt, A: isa.V0, Dest: isa.V1, FromWidth: 8}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.FromWidth).To(Equal(uint8(8)))
		})
	})

	Describe("Float class", func() {
		It("round-trips FADD with three distinct registers", func() {
			in := &isa.Instruction{Opty: isa.OptyFloat, FloatOp: isa.Fadd, A: isa.V6, B: isa.V1, Dest: isa.V7}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.FloatOp).To(Equal(isa.Fadd))
			Expect(out.A).To(Equal(isa.V6))
			Expect(out.B).To(Equal(isa.V1))
			Expect(out.Dest).To(Equal(isa.V7))
		})
	})

	Describe("Register class", func() {
		It("round-trips a zero-page LBR", func() {
			in := &isa.Instruction{
				Opty: isa.OptyRegister, RegOp: isa.Lbr,
				Mode: isa.AddrZeroPage, Offset: 0x1234, Dest: isa.V2,
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Mode).To(Equal(isa.AddrZeroPage))
			Expect(out.Offset).To(Equal(int32(0x1234)))
			Expect(out.Dest).To(Equal(isa.V2))
		})

		It("round-trips a volatile offset SBR", func() {
			in := &isa.Instruction{
				Opty: isa.OptyRegister, RegOp: isa.Sbr,
				Mode: isa.AddrVolatileOffset, Base: isa.V3, Offset: -4, Dest: isa.V1,
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Mode.Volatile()).To(BeTrue())
			Expect(out.Base).To(Equal(isa.V3))
			Expect(out.Offset).To(Equal(int32(-4)))
		})

		It("round-trips an indexed LLR", func() {
			in := &isa.Instruction{
				Opty: isa.OptyRegister, RegOp: isa.Llr,
				Mode: isa.AddrIndexed, Base: isa.V4, Index: isa.V5, Dest: isa.VA,
			}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Base).To(Equal(isa.V4))
			Expect(out.Index).To(Equal(isa.V5))
			Expect(out.Dest).To(Equal(isa.VA))
		})

		It("round-trips TFR", func() {
			in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Tfr, Source: isa.SP, Dest2: isa.V0}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Source).To(Equal(isa.SP))
			Expect(out.Dest2).To(Equal(isa.V0))
		})

		It("round-trips an LDR immediate", func() {
			in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Ldr, Imm: 0xBEEF, Dest: isa.V3}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Imm).To(Equal(uint32(0xBEEF)))
			Expect(out.Dest).To(Equal(isa.V3))
			Expect(out.ZeroPage).To(BeFalse())
		})

		It("round-trips an LDR zero-page-translate", func() {
			in := &isa.Instruction{Opty: isa.OptyRegister, RegOp: isa.Ldr, ZeroPage: true, Offset: 0x10, Dest: isa.V3}
			out, err := isa.Decode(isa.Encode(in))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ZeroPage).To(BeTrue())
			Expect(out.Offset).To(Equal(int32(0x10)))
		})
	})

	Describe("Disassemble", func() {
		It("renders an ADD with its three operands", func() {
			in := &isa.Instruction{Opty: isa.OptyInteger, IntOp: isa.Add, A: isa.V1, B: isa.V3, Dest: isa.V2}
			Expect(isa.Disassemble(in)).To(Equal("ADD V1,V3,V2"))
		})

		It("renders an ADD immediate form with its # operand", func() {
			in := &isa.Instruction{
				Opty: isa.OptyInteger, IntOp: isa.Add, A: isa.V1,
				ImmediateForm: true, ImmVal: 42, Dest: isa.V2,
			}
			Expect(isa.Disassemble(in)).To(Equal("ADD V1,#42,V2"))
		})

		It("renders a HALT", func() {
			in := &isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Halt}
			Expect(isa.Disassemble(in)).To(Equal("HALT"))
		})
	})
})
