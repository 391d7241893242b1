package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/mem"
)

var _ = Describe("Cache", func() {
	var backing *mem.Memory
	var cfg cache.Config

	BeforeEach(func() {
		backing = mem.NewMemory()
		cfg = cache.Config{
			Enabled: true, SetBits: 2, OffsetBits: 6, Ways: 2,
			MissPenalty: 10, VolatilePenalty: 4,
		}
	})

	Describe("Validate", func() {
		It("rejects offset_bits below 2", func() {
			cfg.OffsetBits = 1
			Expect(cfg.Validate()).To(MatchError(cache.ErrConfigError))
		})

		It("rejects set_bits+offset_bits over 32", func() {
			cfg.SetBits = 30
			cfg.OffsetBits = 10
			Expect(cfg.Validate()).To(MatchError(cache.ErrConfigError))
		})

		It("rejects a disallowed way count", func() {
			cfg.Ways = 3
			Expect(cfg.Validate()).To(MatchError(cache.ErrConfigError))
		})

		It("accepts a valid configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("Read/Write", func() {
		var c *cache.Cache

		BeforeEach(func() {
			Expect(cfg.Validate()).To(Succeed())
			c = cache.New(cfg, backing)
		})

		It("misses cold on first read and hits thereafter", func() {
			r1 := c.Read(0x1000, 4)
			Expect(r1.Hit).To(BeFalse())

			r2 := c.Read(0x1000, 4)
			Expect(r2.Hit).To(BeTrue())
			Expect(r2.Cycles).To(Equal(uint64(1)))

			stats := c.Stats()
			Expect(stats.ColdMisses).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.ColdMisses + stats.ConflictMisses).To(Equal(stats.Misses))
		})

		It("satisfies S6: one miss and 99 hits for a 64-byte-block loop", func() {
			for i := 0; i < 100; i++ {
				c.Read(0x3000, 4)
			}
			stats := c.Stats()

			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(99)))
		})

		It("writes through to backing memory and never marks dirty when writethrough is set", func() {
			cfg.Writethrough = true
			c = cache.New(cfg, backing)

			c.Write(0x5000, 4, 0xDEADBEEF)

			backingVal, err := backing.Read32(0x5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(backingVal).To(Equal(uint32(0xDEADBEEF)))

			for _, line := range c.Lines() {
				Expect(line.Dirty).To(BeFalse())
			}
		})

		It("marks a line dirty on write-back writes without writing it to backing memory", func() {
			c.Write(0x6000, 4, 0x11223344)

			lines := c.Lines()
			Expect(lines).To(HaveLen(1))
			Expect(lines[0].Dirty).To(BeTrue())

			before, _ := backing.Read32(0x6000)
			Expect(before).To(Equal(uint32(0)))
		})

		It("round-trips values read back out of the cache", func() {
			c.Write(0x7000, 4, 0xCAFEBABE)
			r := c.Read(0x7000, 4)

			Expect(r.Hit).To(BeTrue())
			Expect(r.Data).To(Equal(uint64(0xCAFEBABE)))
		})
	})
})
