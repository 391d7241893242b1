// Package mem implements SEIS's paged, byte-addressable main memory.
package mem

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// PageSize is the size in bytes of one lazily-allocated page.
const PageSize = 64 * 1024

// StackPage and ZeroPage are the conventional page numbers described in
// SPEC_FULL.md §3: page 1 is the stack, page 2 is the zero-page scratch.
const (
	StackPage = 1
	ZeroPage  = 2
)

// pageCount is the number of pages addressable by a 32-bit byte address
// at PageSize granularity: the full page count N from SPEC_FULL.md §3.
const pageCount = 65536

// ErrMisalignedAccess signals a short/word access whose address is not
// naturally aligned.
var ErrMisalignedAccess = errors.New("misaligned access")

// Memory is SEIS's lazily-paged address space. Pages are allocated on
// first write; reads of an unallocated page return zero without
// allocating it.
type Memory struct {
	pages map[uint32][]byte
}

// NewMemory creates an empty paged address space. The constructor and
// Read8/Write8 naming mirror the teacher's emu.NewMemory/Read8/Write8
// convention (see DESIGN.md).
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32][]byte)}
}

func pageOf(addr uint32) uint32   { return addr / PageSize }
func offsetOf(addr uint32) uint32 { return addr % PageSize }

// page returns the backing slice for the page containing addr, allocating
// it lazily if alloc is true and it doesn't exist yet.
func (m *Memory) page(addr uint32, alloc bool) []byte {
	pn := pageOf(addr)
	if p, ok := m.pages[pn]; ok {
		return p
	}
	if !alloc {
		return nil
	}
	p := make([]byte, PageSize)
	m.pages[pn] = p
	return p
}

// Read8 reads a single byte. Unallocated pages read as zero.
func (m *Memory) Read8(addr uint32) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[offsetOf(addr)]
}

// Write8 writes a single byte, allocating its page if necessary.
func (m *Memory) Write8(addr uint32, v uint8) {
	p := m.page(addr, true)
	p[offsetOf(addr)] = v
}

// Read16 reads a little-endian 16-bit value. addr must be 2-byte aligned.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		return 0, fmt.Errorf("%w: address 0x%08X is not 2-byte aligned", ErrMisalignedAccess, addr)
	}
	lo := uint16(m.Read8(addr))
	hi := uint16(m.Read8(addr + 1))
	return lo | hi<<8, nil
}

// Write16 writes a little-endian 16-bit value. addr must be 2-byte aligned.
func (m *Memory) Write16(addr uint32, v uint16) error {
	if addr%2 != 0 {
		return fmt.Errorf("%w: address 0x%08X is not 2-byte aligned", ErrMisalignedAccess, addr)
	}
	m.Write8(addr, uint8(v))
	m.Write8(addr+1, uint8(v>>8))
	return nil
}

// Read32 reads a little-endian 32-bit value. addr must be 4-byte aligned.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("%w: address 0x%08X is not 4-byte aligned", ErrMisalignedAccess, addr)
	}
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(m.Read8(addr+i)) << (8 * i)
	}
	return v, nil
}

// Write32 writes a little-endian 32-bit value. addr must be 4-byte aligned.
func (m *Memory) Write32(addr uint32, v uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("%w: address 0x%08X is not 4-byte aligned", ErrMisalignedAccess, addr)
	}
	for i := uint32(0); i < 4; i++ {
		m.Write8(addr+i, uint8(v>>(8*i)))
	}
	return nil
}

// ReadInstruction reads a 32-bit instruction word at a 4-aligned address.
func (m *Memory) ReadInstruction(addr uint32) (uint32, error) {
	return m.Read32(addr)
}

// ReadBlock reads size bytes starting at addr, without alignment
// requirements, for use by the cache module's block fetch.
func (m *Memory) ReadBlock(addr uint32, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = m.Read8(addr + uint32(i))
	}
	return out
}

// WriteBlock writes data starting at addr, for use by the cache module's
// writeback path.
func (m *Memory) WriteBlock(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// IsAllocated reports whether page has been written.
func (m *Memory) IsAllocated(page uint32) bool {
	_, ok := m.pages[page]
	return ok
}

// PageBytes returns the raw bytes of an allocated page, or nil if the
// page has never been written.
func (m *Memory) PageBytes(page uint32) []byte {
	return m.pages[page]
}

// PageHash returns a 64-bit FNV-1a digest of an allocated page's
// contents, or 0 for an unallocated page, letting driver clients elide
// retransmits of unchanged pages (SPEC_FULL.md §4.2/§4.5).
func (m *Memory) PageHash(page uint32) uint64 {
	p, ok := m.pages[page]
	if !ok {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(p)
	return h.Sum64()
}

// PageCount returns the address space's page count N.
func (m *Memory) PageCount() uint32 { return pageCount }
