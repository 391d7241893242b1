package sim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/isa"
	"github.com/sarchlab/seis/mem"
)

func (d *Driver) cmdClock(args []string) (any, error) {
	n, err := parseUint(args, "clock")
	if err != nil {
		return nil, err
	}
	d.pipe.Clock(n)
	return d.statusString(), nil
}

func (d *Driver) cmdRun() (any, error) {
	d.stopped.Store(false)
	for !d.pipe.Halted() {
		d.pipe.Clock(1)
		if d.stopped.Load() {
			return "stopped", nil
		}
		if d.watch[d.pipe.PC()] {
			return "breakpoint", nil
		}
	}
	return d.statusString(), nil
}

func (d *Driver) cmdStop() (any, error) {
	d.stopped.Store(true)
	return "ok", nil
}

func (d *Driver) cmdRegs() (any, error) {
	r := d.pipe.Regs()
	regs := map[string]any{
		"SP": r.SP, "BP": r.BP, "LP": r.LP, "PC": r.PC,
		"ZF": r.ZF, "OF": r.OF, "EPS": r.EPS, "NAN": r.NAN, "INF": r.INF,
	}
	for i, v := range r.V {
		regs[fmt.Sprintf("V%X", i)] = v
	}
	return regs, nil
}

func (d *Driver) cmdPage(args []string) (any, error) {
	page, err := parseUint(args, "page")
	if err != nil {
		return nil, err
	}
	if !d.mem.IsAllocated(uint32(page)) {
		return nil, nil
	}
	return map[string]any{
		// Encoded as a decimal string, not a JSON number: a 64-bit hash
		// can exceed what a JS/JSON double represents exactly.
		"hash": strconv.FormatUint(d.mem.PageHash(uint32(page)), 10),
		"data": d.mem.PageBytes(uint32(page)),
	}, nil
}

type disasmLine struct {
	Address     uint32 `json:"address"`
	Bytes       uint32 `json:"bytes"`
	Instruction string `json:"instruction"`
}

func (d *Driver) cmdDisasm(args []string) (any, error) {
	page, err := parseUint(args, "disasm")
	if err != nil {
		return nil, err
	}
	base := uint32(page) * mem.PageSize
	out := make([]disasmLine, 0, mem.PageSize/4)
	for off := uint32(0); off < mem.PageSize; off += 4 {
		addr := base + off
		word, rerr := d.mem.Read32(addr)
		if rerr != nil {
			continue
		}
		line := disasmLine{Address: addr, Bytes: word}
		inst, derr := isa.Decode(word)
		if derr != nil {
			line.Instruction = "?"
		} else {
			line.Instruction = isa.Disassemble(inst)
		}
		out = append(out, line)
	}
	return out, nil
}

type cacheLine struct {
	Cache       string `json:"cache"`
	BaseAddress uint32 `json:"base_address"`
	Dirty       bool   `json:"dirty"`
	Data        []byte `json:"data"`
}

func (d *Driver) cmdCache() (any, error) {
	out := []cacheLine{}
	dump := func(name string, c *cache.Cache) {
		if c == nil {
			return
		}
		for _, l := range c.Lines() {
			out = append(out, cacheLine{Cache: name, BaseAddress: l.BaseAddress, Dirty: l.Dirty, Data: l.Data})
		}
	}
	dump("instruction", d.icache)
	dump("data", d.dcache)
	return out, nil
}

func (d *Driver) cmdPipe() (any, error) {
	return d.pipe.Stages(), nil
}

func (d *Driver) cmdStats() (any, error) {
	s := d.pipe.Stats()
	out := map[string]any{
		"clocks":       s.Cycles,
		"instructions": s.Instructions,
		"stalls":       s.Stalls,
		"flushes":      s.Flushes,
		"fetch_stalls": s.FetchStalls,
		"exec_stalls":  s.ExecStalls,
		"mem_stalls":   s.MemStalls,
		"data_hazards": s.DataHazards,
		"cpi":          s.CPI(),
	}
	addCacheStats := func(name string, c *cache.Cache) {
		if c == nil {
			return
		}
		cs := c.Stats()
		out[name] = map[string]any{
			"accesses":        cs.Accesses,
			"hits":            cs.Hits,
			"misses":          cs.Misses,
			"cold_misses":     cs.ColdMisses,
			"conflict_misses": cs.ConflictMisses,
			"evictions":       cs.Evictions,
			"writebacks":      cs.Writebacks,
		}
	}
	addCacheStats("instruction_cache", d.icache)
	addCacheStats("data_cache", d.dcache)
	return out, nil
}

func (d *Driver) cmdWatch(args []string) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: watch requires add|remove <addr>", ErrProtocol)
	}
	addr, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: watch address %q: %v", ErrProtocol, args[1], err)
	}
	switch args[0] {
	case "add":
		d.watch[uint32(addr)] = true
	case "remove":
		delete(d.watch, uint32(addr))
	default:
		return nil, fmt.Errorf("%w: watch expects add|remove, got %q", ErrProtocol, args[0])
	}
	addrs := make([]uint32, 0, len(d.watch))
	for a := range d.watch {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return map[string]any{"addresses": addrs}, nil
}

func (d *Driver) cmdInfo(args []string) (any, error) {
	if len(args) == 0 || args[0] != "pages" {
		return nil, fmt.Errorf("%w: info expects \"pages\"", ErrProtocol)
	}
	return map[string]any{"page_count": d.mem.PageCount()}, nil
}

func (d *Driver) statusString() string {
	if d.pipe.Halted() {
		return d.pipe.HaltReason().String()
	}
	return "running"
}

func parseUint(args []string, cmd string) (uint64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s requires a numeric argument", ErrProtocol, cmd)
	}
	n, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s argument %q: %v", ErrProtocol, cmd, args[0], err)
	}
	return n, nil
}

func splitCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
