// Package bench assembles and runs SEIS's end-to-end benchmark
// scenarios (SPEC_FULL.md §8, S2/S3), following the spirit of the
// teacher's benchmarks package: functional-correctness checks on whole
// programs rather than microbenchmarked timing.
package bench_test

import (
	_ "embed"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/asm"
	"github.com/sarchlab/seis/loader"
	"github.com/sarchlab/seis/mem"
	"github.com/sarchlab/seis/pipeline"
)

//go:embed matrix.seis
var matrixSource string

//go:embed sort.seis
var sortSource string

// run assembles and executes source to completion, returning the halted
// pipeline plus the image (for label lookups).
func run(source string) (*pipeline.Pipeline, *asm.Image) {
	image, err := asm.Assemble(source)
	Expect(err).NotTo(HaveOccurred())

	prog, err := loader.Parse(image.Encode())
	Expect(err).NotTo(HaveOccurred())

	m := mem.NewMemory()
	for _, seg := range prog.Segments {
		m.WriteBlock(seg.Addr, seg.Data)
	}

	p := pipeline.New(m)
	p.SetPC(prog.EntryPoint)
	p.Regs().SP = prog.InitialSP
	p.Run()

	Expect(p.HaltReason()).To(Equal(pipeline.HaltInstruction))
	return p, image
}

var _ = Describe("Matrix multiply (S2)", func() {
	It("computes result_matrix[0] as the dot product of left's first row and right's first column", func() {
		p, image := run(matrixSource)

		// result_matrix[0][0] = sum_{k=0..9} left[0,k]*right[k,0];
		// right's first column is all ones, so this is sum(1..10).
		result, err := image.LabelAddress("result_matrix")
		Expect(err).NotTo(HaveOccurred())

		got, err := p.Mem().Read32(result)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(uint32(55)))
	})
})

var _ = Describe("Exchange sort (S3)", func() {
	It("leaves the 16 words in non-decreasing order", func() {
		p, image := run(sortSource)

		addr, err := image.LabelAddress("data")
		Expect(err).NotTo(HaveOccurred())

		values := make([]uint32, 16)
		for i := range values {
			v, err := p.Mem().Read32(addr + uint32(i*4))
			Expect(err).NotTo(HaveOccurred())
			values[i] = v
		}

		for i := 1; i < len(values); i++ {
			Expect(values[i]).To(BeNumerically(">=", values[i-1]))
		}
	})
})
