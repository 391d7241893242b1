package loader_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/asm"
	"github.com/sarchlab/seis/loader"
)

func put32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func buildImage(magic, entry, initialSP uint32, segs [][]byte, addrs []uint32) []byte {
	var buf []byte
	buf = put32(buf, magic)
	buf = put32(buf, entry)
	buf = put32(buf, initialSP)
	buf = put32(buf, uint32(len(segs)))
	for i, data := range segs {
		buf = put32(buf, addrs[i])
		buf = put32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	return buf
}

var _ = Describe("Loader", func() {
	It("parses a single-segment image", func() {
		data := buildImage(0x53494553, 0, 0x20000-4, [][]byte{{1, 2, 3, 4}}, []uint32{0})

		prog, err := loader.Parse(data)

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.EntryPoint).To(Equal(uint32(0)))
		Expect(prog.InitialSP).To(Equal(uint32(0x20000 - 4)))
		Expect(prog.Segments).To(HaveLen(1))
		Expect(prog.Segments[0].Addr).To(Equal(uint32(0)))
		Expect(prog.Segments[0].Data).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("parses multiple segments at distinct addresses", func() {
		data := buildImage(0x53494553, 0, 0,
			[][]byte{{0xAA, 0xBB}, {1, 2, 3, 4, 5, 6, 7, 8}},
			[]uint32{0, 0x2000},
		)

		prog, err := loader.Parse(data)

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Segments).To(HaveLen(2))
		Expect(prog.Segments[1].Addr).To(Equal(uint32(0x2000)))
		Expect(prog.Segments[1].Data).To(HaveLen(8))
	})

	It("rejects a bad magic number", func() {
		data := buildImage(0xDEADBEEF, 0, 0, nil, nil)

		_, err := loader.Parse(data)

		Expect(err).To(MatchError(loader.ErrBadImage))
	})

	It("rejects a file shorter than the header", func() {
		_, err := loader.Parse([]byte{1, 2, 3})

		Expect(err).To(MatchError(loader.ErrBadImage))
	})

	It("rejects a segment record whose length runs past the end of the file", func() {
		data := buildImage(0x53494553, 0, 0, [][]byte{{1, 2, 3, 4}}, []uint32{0})
		truncated := data[:len(data)-2]

		_, err := loader.Parse(truncated)

		Expect(err).To(MatchError(loader.ErrBadImage))
	})

	It("round-trips an assembled image end to end", func() {
		built, err := asm.Assemble(`
			LDR 5 => V0
			HALT
		`)
		Expect(err).NotTo(HaveOccurred())

		prog, err := loader.Parse(built.Encode())

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Segments).To(HaveLen(1))
		Expect(prog.Segments[0].Data).To(HaveLen(8))
	})
})
