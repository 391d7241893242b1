// Package cache implements SEIS's set-associative cache module on top of
// Akita's cache directory and LRU victim-finder, generalized from the
// teacher's byte-size/associativity geometry to SPEC_FULL.md's
// set_bits/offset_bits/ways geometry with cold/conflict miss accounting
// and a writethrough policy switch.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// ErrConfigError signals an invalid cache geometry.
var ErrConfigError = errors.New("config error")

// Config describes one cache's geometry, per SPEC_FULL.md §3/§4.3.
// Disabled caches are represented by Enabled == false; no Cache is built
// for such a config, and the pipeline then reads and writes memory
// directly at one cycle per access. The miss penalty is not charged for
// those accesses.
type Config struct {
	Enabled     bool
	SetBits     uint
	OffsetBits  uint
	Ways        int
	MissPenalty uint64
	// VolatilePenalty charges instead of MissPenalty on a volatile
	// access, which bypasses the cache entirely.
	VolatilePenalty uint64
	// Writethrough selects the writethrough policy: stores update both
	// the line (marked clean) and the backing memory immediately.
	Writethrough bool
}

// Validate checks the geometry constraints from SPEC_FULL.md §3:
// offset_bits >= 2, set_bits + offset_bits <= 32, ways in {1,2,4,8,16}.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.OffsetBits < 2 {
		return fmt.Errorf("%w: offset_bits must be >= 2, got %d", ErrConfigError, c.OffsetBits)
	}
	if c.SetBits+c.OffsetBits > 32 {
		return fmt.Errorf("%w: set_bits+offset_bits must be <= 32, got %d", ErrConfigError, c.SetBits+c.OffsetBits)
	}
	switch c.Ways {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: ways must be one of {1,2,4,8,16}, got %d", ErrConfigError, c.Ways)
	}
	if c.MissPenalty == 0 {
		return fmt.Errorf("%w: miss_penalty must be > 0", ErrConfigError)
	}
	if c.VolatilePenalty == 0 {
		return fmt.Errorf("%w: volatile_penalty must be > 0", ErrConfigError)
	}
	return nil
}

// BlockSize returns the cache line size in bytes, 2^offset_bits.
func (c Config) BlockSize() int { return 1 << c.OffsetBits }

// NumSets returns the number of sets, 2^set_bits.
func (c Config) NumSets() int { return 1 << c.SetBits }

// AccessResult reports the outcome of one cache access.
type AccessResult struct {
	Hit         bool
	Cycles      uint64
	Data        uint64
	Evicted     bool
	EvictedAddr uint32
}

// Statistics holds the per-cache counters required by invariant 7 in
// SPEC_FULL.md §8: cold_misses + conflict_misses == misses, and
// hits + misses == accesses.
type Statistics struct {
	Accesses       uint64
	Hits           uint64
	Misses         uint64
	ColdMisses     uint64
	ConflictMisses uint64
	Evictions      uint64
	Writebacks     uint64
}

// HitRate returns Hits/Accesses, or 0 if there have been no accesses.
func (s Statistics) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses)
}

// BackingStore is the next level in the memory hierarchy: main memory.
type BackingStore interface {
	ReadBlock(addr uint32, size int) []byte
	WriteBlock(addr uint32, data []byte)
}

// Cache is one set-associative SEIS cache (either the instruction cache
// or the data cache).
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	stats     Statistics
	backing   BackingStore
}

// New creates a cache with the given configuration and backing store.
// Callers must have validated config with Config.Validate first.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.NumSets()
	totalBlocks := numSets * config.Ways

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize())
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Ways,
			config.BlockSize(),
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache's configuration.
func (c *Cache) Config() Config { return c.config }

// Stats returns the cache's statistics snapshot.
func (c *Cache) Stats() Statistics { return c.stats }

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Ways + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	bs := uint32(c.config.BlockSize())
	return (addr / bs) * bs
}

// Read performs a cache read of size bytes at addr.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Accesses++
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		offset := addr - blockAddr
		data := extractData(c.dataStore[c.blockIndex(block)], offset, size)
		return AccessResult{Hit: true, Cycles: 1, Data: data}
	}

	c.stats.Misses++
	return c.handleMiss(addr, blockAddr, size, false, 0)
}

// Write performs a cache write of size bytes at addr with write-allocate.
func (c *Cache) Write(addr uint32, size int, data uint64) AccessResult {
	c.stats.Accesses++
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		offset := addr - blockAddr
		line := c.dataStore[c.blockIndex(block)]
		storeData(line, offset, size, data)

		if c.config.Writethrough {
			block.IsDirty = false
			c.backing.WriteBlock(blockAddr, line)
		} else {
			block.IsDirty = true
		}
		return AccessResult{Hit: true, Cycles: 1}
	}

	c.stats.Misses++
	return c.handleMiss(addr, blockAddr, size, true, data)
}

func (c *Cache) handleMiss(addr, blockAddr uint32, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{Hit: false, Cycles: c.config.MissPenalty}

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)

		if victim.IsDirty && !c.config.Writethrough {
			c.backing.WriteBlock(uint32(victim.Tag), victimData)
			c.stats.Writebacks++
			result.Cycles += c.config.MissPenalty
		}
		c.stats.ConflictMisses++
	} else {
		c.stats.ColdMisses++
	}

	newData := c.backing.ReadBlock(blockAddr, c.config.BlockSize())
	copy(victimData, newData)

	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr - blockAddr
	if isWrite {
		storeData(victimData, offset, size, writeData)
		if c.config.Writethrough {
			c.backing.WriteBlock(blockAddr, victimData)
		} else {
			victim.IsDirty = true
		}
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)
	return result
}

// Invalidate marks the cache line holding addr (if any) as invalid
// without writeback.
func (c *Cache) Invalidate(addr uint32) {
	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty lines and invalidates the cache.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.backing.WriteBlock(uint32(block.Tag), c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Line is a snapshot of one valid cache line, for the driver's `cache`
// inspection command (SPEC_FULL.md §4.5).
type Line struct {
	BaseAddress uint32
	Dirty       bool
	Data        []byte
}

// Lines returns every valid line across all sets/ways.
func (c *Cache) Lines() []Line {
	var out []Line
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid {
				continue
			}
			data := make([]byte, len(c.dataStore[c.blockIndex(block)]))
			copy(data, c.dataStore[c.blockIndex(block)])
			out = append(out, Line{BaseAddress: uint32(block.Tag), Dirty: block.IsDirty, Data: data})
		}
	}
	return out
}

func extractData(data []byte, offset uint32, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (8 * i)
	}
	return result
}

func storeData(data []byte, offset uint32, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (8 * i))
	}
}
