package asm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/seis/mem"
)

// ErrUndefinedLabel is returned by Image.LabelAddress for a name pass 1
// never saw.
var ErrUndefinedLabel = errors.New("undefined label")

// imageMagic identifies a SEIS binary image: the ASCII bytes "SEIS"
// read as a little-endian uint32.
const imageMagic = 0x53494553

// defaultInitialSP is the stack pointer value a freshly loaded program
// starts with when the source never names one explicitly: the highest
// word-aligned address in the conventional stack page (SPEC_FULL.md
// §3; mem.StackPage).
const defaultInitialSP = uint32(mem.StackPage+1)*mem.PageSize - 4

// Placement is one contiguous run of bytes destined for a fixed
// address, the unit the loader and the assembler's emission pass both
// deal in (SPEC_FULL.md §4.6/§4.7/§6).
type Placement struct {
	Addr uint32
	Data []byte
}

// Image is the assembler's output: the placements to write into
// memory plus the entry point and initial stack pointer the loader
// hands to the pipeline.
type Image struct {
	Entry      uint32
	InitialSP  uint32
	Placements []Placement

	// Labels records every label's resolved address, carried along for
	// tooling (debuggers, benchmarks) that needs to locate a symbol
	// without re-deriving the program's layout by hand.
	Labels map[string]uint32
}

// LabelAddress returns the address a label resolved to, or
// ErrUndefinedLabel if the assembled source never declared it.
func (img *Image) LabelAddress(name string) (uint32, error) {
	addr, ok := img.Labels[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUndefinedLabel, name)
	}
	return addr, nil
}

// Encode serializes an Image into the wire format loader.Load reads:
// a fixed header followed by one record per placement.
func (img *Image) Encode() []byte {
	var buf []byte
	put32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	put32(imageMagic)
	put32(img.Entry)
	put32(img.InitialSP)
	put32(uint32(len(img.Placements)))
	for _, p := range img.Placements {
		put32(p.Addr)
		put32(uint32(len(p.Data)))
		buf = append(buf, p.Data...)
	}
	return buf
}

// WriteFile assembles and writes the binary image to path.
func (img *Image) WriteFile(path string) error {
	if err := os.WriteFile(path, img.Encode(), 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
