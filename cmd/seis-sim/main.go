// Command seis-sim runs a SEIS binary image on the pipelined simulator,
// either to completion or as a line-delimited command server for a
// frontend (SPEC_FULL.md §6).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/seis/cache"
	"github.com/sarchlab/seis/loader"
	"github.com/sarchlab/seis/mem"
	"github.com/sarchlab/seis/pipeline"
	"github.com/sarchlab/seis/sim"
)

// Exit codes per SPEC_FULL.md §6.
const (
	exitOK = iota
	exitAssemblyError
	exitRuntimeError
	exitConfigError
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("seis-sim", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON simulator configuration")
	batch := fs.Bool("b", false, "batch mode: serve the line-delimited command protocol over stdin/stdout")
	if err := fs.Parse(args); err != nil {
		return exitRuntimeError
	}

	if fs.NArg() < 2 || fs.Arg(0) != "run" {
		fmt.Fprintln(os.Stderr, "usage: seis-sim run <binary> [-config <path>] [-b]")
		return exitRuntimeError
	}
	binaryPath := fs.Arg(1)
	if err := fs.Parse(fs.Args()[2:]); err != nil {
		return exitRuntimeError
	}

	config := sim.DefaultConfig()
	if *configPath != "" {
		loaded, err := sim.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			return exitConfigError
		}
		config = loaded
	}

	prog, err := loader.Load(binaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		return exitRuntimeError
	}

	memory := mem.NewMemory()
	for _, seg := range prog.Segments {
		memory.WriteBlock(seg.Addr, seg.Data)
	}

	icache := buildCache(config.Cache.Instruction, config, memory)
	dcache := buildCache(config.Cache.Data, config, memory)

	var opts []pipeline.Option
	if icache != nil {
		opts = append(opts, pipeline.WithICache(icache))
	}
	if dcache != nil {
		opts = append(opts, pipeline.WithDCache(dcache))
	}
	if !config.Pipelining {
		opts = append(opts, pipeline.WithPipeliningDisabled())
	}

	p := pipeline.New(memory, opts...)
	p.SetPC(prog.EntryPoint)
	p.Regs().SP = prog.InitialSP

	if *batch {
		return runBatch(p, memory, icache, dcache)
	}
	return runToCompletion(p)
}

func buildCache(cc sim.CacheConfig, config *sim.Config, backing cache.BackingStore) *cache.Cache {
	geom := cc.ToCacheConfig(config.MissPenalty, config.VolatilePenalty, config.Writethrough)
	if !geom.Enabled {
		return nil
	}
	return cache.New(geom, backing)
}

func runToCompletion(p *pipeline.Pipeline) int {
	p.Run()

	switch p.HaltReason() {
	case pipeline.HaltInstruction:
		fmt.Printf("halted: %d instructions, %d cycles\n", p.Stats().Instructions, p.Stats().Cycles)
		return exitOK
	case pipeline.HaltError:
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", p.Err())
		return exitRuntimeError
	default:
		fmt.Fprintf(os.Stderr, "halted for an unexpected reason: %s\n", p.HaltReason())
		return exitRuntimeError
	}
}

func runBatch(p *pipeline.Pipeline, memory *mem.Memory, icache, dcache *cache.Cache) int {
	driver := sim.NewDriver(p, memory, icache, dcache)
	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for scanner.Scan() {
		fmt.Fprintln(out, driver.Execute(scanner.Text()))
		out.Flush()
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		return exitRuntimeError
	}
	return exitOK
}
