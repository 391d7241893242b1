// Package loader reads the binary images the asm package produces and
// turns them into a Program ready to place into mem.Memory: SEIS has no
// use for an ELF-style loader (it targets its own instruction set, not
// a host OS ABI), so this replaces the teacher's ARM64 ELF reader with
// one for SEIS's own header+segment wire format (SPEC_FULL.md §4.7)
// while keeping its Program/Segment naming and Load(path) shape.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// imageMagic must match asm.imageMagic; duplicated here (rather than
// imported) because loader must not depend on asm — the assembler
// depends on nothing downstream of it, and the loader is the
// consumer, not the producer, of the wire format.
const imageMagic = 0x53494553

// ErrBadImage signals a file that is not a well-formed SEIS binary
// image: a bad magic number, a truncated header, or a segment record
// whose length claim runs past the end of the file.
var ErrBadImage = errors.New("bad image")

// Segment is one placement of bytes at a fixed address, copied
// verbatim into memory as SEIS's PageSize-agnostic flat address space.
type Segment struct {
	Addr uint32
	Data []byte
}

// Program is a loaded SEIS binary image, ready to be written into
// mem.Memory and to seed the pipeline's PC and SP.
type Program struct {
	EntryPoint uint32
	InitialSP  uint32
	Segments   []Segment
}

// Load reads and parses a SEIS binary image from path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return Parse(data)
}

// Parse decodes a SEIS binary image already read into memory, the
// header described in SPEC_FULL.md §4.7: magic, entry, initial_sp,
// segment_count, each a little-endian uint32, followed by
// segment_count records of (addr uint32, length uint32, data[length]).
func Parse(data []byte) (*Program, error) {
	const headerSize = 16
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file shorter than the header", ErrBadImage)
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != imageMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrBadImage, magic)
	}

	prog := &Program{
		EntryPoint: binary.LittleEndian.Uint32(data[4:8]),
		InitialSP:  binary.LittleEndian.Uint32(data[8:12]),
	}
	count := binary.LittleEndian.Uint32(data[12:16])

	offset := headerSize
	for i := uint32(0); i < count; i++ {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated segment record %d", ErrBadImage, i)
		}
		addr := binary.LittleEndian.Uint32(data[offset : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8

		if offset+int(length) > len(data) {
			return nil, fmt.Errorf("%w: segment %d claims %d bytes past end of file", ErrBadImage, i, length)
		}
		seg := Segment{Addr: addr, Data: data[offset : offset+int(length)]}
		prog.Segments = append(prog.Segments, seg)
		offset += int(length)
	}

	return prog, nil
}
