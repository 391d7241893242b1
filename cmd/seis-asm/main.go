// Command seis-asm assembles SEIS source files into a binary image
// (SPEC_FULL.md §4.6/§4.7).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/seis/asm"
)

const (
	exitOK = iota
	exitAssemblyError
	exitIOError
)

var (
	outPath = flag.String("o", "a.out.seis", "output binary image path")
	verbose = flag.Bool("v", false, "verbose output")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: seis-asm [options] <source...> -o <binary>\n\nOptions:\n")
		flag.PrintDefaults()
		return exitIOError
	}

	source, err := readSources(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading source: %v\n", err)
		return exitIOError
	}

	image, err := asm.Assemble(source)
	if err != nil {
		if errs, ok := err.(asm.Errors); ok {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "%s\n", e.Error())
			}
		} else {
			fmt.Fprintf(os.Stderr, "assembly error: %v\n", err)
		}
		return exitAssemblyError
	}

	if err := image.WriteFile(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error writing image: %v\n", err)
		return exitIOError
	}

	if *verbose {
		fmt.Printf("wrote %s: entry=0x%08X sp=0x%08X segments=%d\n",
			*outPath, image.Entry, image.InitialSP, len(image.Placements))
	}

	return exitOK
}

func readSources(paths []string) (string, error) {
	var parts []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}
