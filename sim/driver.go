package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/mem"
	"github.com/sarchlab/seis/pipeline"
)

// Driver serves the line-delimited command protocol of SPEC_FULL.md §4.5
// over a single Pipeline, serializing concurrent frontends behind a
// mutex the way a single-core device driver would, per §5's "per-process
// lock" requirement.
type Driver struct {
	mu     sync.Mutex
	pipe   *pipeline.Pipeline
	mem    *mem.Memory
	icache *cache.Cache
	dcache *cache.Cache

	stopped atomic.Bool
	watch   map[uint32]bool
}

// NewDriver wraps p (backed by m, with optional icache/dcache) in a
// command driver. icache/dcache may be nil if those caches are disabled.
func NewDriver(p *pipeline.Pipeline, m *mem.Memory, icache, dcache *cache.Cache) *Driver {
	return &Driver{
		pipe:   p,
		mem:    m,
		icache: icache,
		dcache: dcache,
		watch:  make(map[uint32]bool),
	}
}

// Execute runs a single command line and returns its JSON response line
// (without a trailing newline). A malformed or unrecognized command
// yields a ProtocolError response object rather than an error return,
// matching SPEC_FULL.md §7's "responds with an error object and
// continues" policy.
func (d *Driver) Execute(line string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, args := splitCommand(line)
	result, err := d.dispatch(name, args)
	if err != nil {
		return encodeLine(map[string]any{"error": err.Error()})
	}
	return encodeLine(result)
}

func (d *Driver) dispatch(name string, args []string) (any, error) {
	switch name {
	case "":
		return nil, fmt.Errorf("%w: empty command", ErrProtocol)
	case "clock":
		return d.cmdClock(args)
	case "run":
		return d.cmdRun()
	case "stop":
		return d.cmdStop()
	case "regs":
		return d.cmdRegs()
	case "page":
		return d.cmdPage(args)
	case "disasm":
		return d.cmdDisasm(args)
	case "cache":
		return d.cmdCache()
	case "pipe":
		return d.cmdPipe()
	case "stats":
		return d.cmdStats()
	case "watch":
		return d.cmdWatch(args)
	case "info":
		return d.cmdInfo(args)
	default:
		return nil, fmt.Errorf("%w: unrecognized command %q", ErrProtocol, name)
	}
}

// ServeCommands reads newline-terminated commands from r and writes one
// JSON response line per command to w, until r is exhausted. It never
// returns a protocol error itself: malformed commands are reported
// inline and the loop continues, per §7.
func (d *Driver) ServeCommands(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for scanner.Scan() {
		resp := d.Execute(scanner.Text())
		if _, err := bw.WriteString(resp + "\n"); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func encodeLine(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{%q:%q}", "error", err.Error())
	}
	return string(data)
}
