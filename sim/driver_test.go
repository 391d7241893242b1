package sim_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/isa"
	"github.com/sarchlab/seis/mem"
	"github.com/sarchlab/seis/pipeline"
	"github.com/sarchlab/seis/sim"
)

func ldrImm(dest isa.Reg, value uint32) uint32 {
	return isa.Encode(&isa.Instruction{
		Opty: isa.OptyRegister, RegOp: isa.Ldr,
		Dest: dest, Imm: value, Zero: true,
	})
}

func halt() uint32 {
	return isa.Encode(&isa.Instruction{Opty: isa.OptyControl, ControlOp: isa.Halt})
}

var _ = Describe("Driver", func() {
	var (
		m *mem.Memory
		p *pipeline.Pipeline
		d *sim.Driver
	)

	BeforeEach(func() {
		m = mem.NewMemory()
		for i, w := range []uint32{ldrImm(isa.V0, 5), ldrImm(isa.V1, 7), halt()} {
			_ = m.Write32(uint32(i*4), w)
		}
		p = pipeline.New(m)
		p.SetPC(0)
		d = sim.NewDriver(p, m, nil, nil)
	})

	It("runs to halt and reports registers", func() {
		resp := d.Execute("run")
		Expect(resp).To(Equal(`"halt"`))

		resp = d.Execute("regs")
		var regs map[string]any
		Expect(json.Unmarshal([]byte(resp), &regs)).To(Succeed())
		Expect(regs["V0"]).To(BeNumerically("==", 5))
		Expect(regs["V1"]).To(BeNumerically("==", 7))
	})

	It("reports clock status without running to completion", func() {
		resp := d.Execute("clock 1")
		Expect(resp).To(Equal(`"running"`))
	})

	It("returns null for an unallocated page", func() {
		resp := d.Execute("page 5")
		Expect(resp).To(Equal("null"))
	})

	It("returns a hash and data for an allocated page", func() {
		resp := d.Execute("page 0")
		var page map[string]any
		Expect(json.Unmarshal([]byte(resp), &page)).To(Succeed())
		Expect(page["hash"]).NotTo(BeNil())
		Expect(page["data"]).NotTo(BeNil())
	})

	It("reports an error object for an unrecognized command", func() {
		resp := d.Execute("bogus")
		Expect(strings.Contains(resp, "error")).To(BeTrue())
	})

	It("reports an error object for a malformed numeric argument", func() {
		resp := d.Execute("clock abc")
		Expect(strings.Contains(resp, "error")).To(BeTrue())
	})

	It("maintains a watchlist and reports a breakpoint on run", func() {
		resp := d.Execute("watch add 8")
		Expect(strings.Contains(resp, "8")).To(BeTrue())

		resp = d.Execute("run")
		Expect(resp).To(Equal(`"breakpoint"`))
	})

	It("reports page_count for info pages", func() {
		resp := d.Execute("info pages")
		var info map[string]any
		Expect(json.Unmarshal([]byte(resp), &info)).To(Succeed())
		Expect(info["page_count"]).NotTo(BeNil())
	})
})
