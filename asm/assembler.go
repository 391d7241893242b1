// Package asm implements SEIS's two-pass assembler (SPEC_FULL.md §4.6):
// source text in, a binary image ready for loader.Load out. It is the
// only producer of binary images this module has, so it exercises the
// full isa.Encode surface the way a real toolchain would.
package asm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/seis/isa"
)

// Assemble compiles source into a binary image. All errors found across
// both passes are returned together as Errors; a non-nil, non-Errors
// error indicates something unrelated (there is none today, but the
// signature leaves room for it).
func Assemble(source string) (*Image, error) {
	stmts := lex(source)
	syms := newSymbolTable()
	var errs Errors

	entry := uint32(0)
	hasEntry := false
	stackPtr := defaultInitialSP

	// Pass 1: compute every statement's address and populate the
	// symbol table (labels and constants). Instruction/data sizes must
	// be knowable without resolving forward references, so `load`
	// always reserves two words (see DESIGN.md).
	addr := uint32(0)
	for _, st := range stmts {
		kind, name, rest := classify(st.text)
		switch kind {
		case kindLabel:
			if err := syms.defineLabel(name, addr); err != nil {
				errs = append(errs, AssemblyError{st.line, err.Error()})
			}
		case kindConstant:
			v, err := syms.resolve(strings.TrimSpace(rest))
			if err != nil {
				errs = append(errs, AssemblyError{st.line, err.Error()})
				continue
			}
			if err := syms.defineConstant(name, v); err != nil {
				errs = append(errs, AssemblyError{st.line, err.Error()})
			}
		case kindDirective:
			switch name {
			case ".org":
				v, err := parseInt(strings.TrimSpace(rest))
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				addr = uint32(v)
			case ".entry", ".stack":
				// Resolved in pass 2, once labels exist; no size impact.
			case ".word":
				addr += uint32(countArgs(rest)) * 4
			case ".short":
				addr += uint32(countArgs(rest)) * 2
			case ".byte":
				addr += uint32(countArgs(rest))
			default:
				errs = append(errs, AssemblyError{st.line, fmt.Sprintf("unknown directive %q", name)})
			}
		case kindInstruction:
			addr += instructionSize(name)
		}
	}

	// Pass 2: re-walk with symbols known, emitting bytes.
	var placements []Placement
	var cur *Placement
	emit := func(at uint32, data []byte) {
		if cur != nil && cur.Addr+uint32(len(cur.Data)) == at {
			cur.Data = append(cur.Data, data...)
			return
		}
		placements = append(placements, Placement{Addr: at, Data: data})
		cur = &placements[len(placements)-1]
	}

	addr = 0
	for _, st := range stmts {
		kind, name, rest := classify(st.text)
		switch kind {
		case kindLabel, kindConstant:
			// Already resolved in pass 1; nothing to emit.
		case kindDirective:
			switch name {
			case ".org":
				v, _ := parseInt(strings.TrimSpace(rest)) // validated in pass 1
				addr = uint32(v)
			case ".entry":
				target := strings.TrimSpace(rest)
				v, err := syms.resolve(target)
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				entry, hasEntry = v, true
			case ".stack":
				v, err := syms.resolve(strings.TrimSpace(rest))
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				stackPtr = v
			case ".word":
				data, err := encodeData(rest, syms, 4)
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				emit(addr, data)
				addr += uint32(len(data))
			case ".short":
				data, err := encodeData(rest, syms, 2)
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				emit(addr, data)
				addr += uint32(len(data))
			case ".byte":
				data, err := encodeData(rest, syms, 1)
				if err != nil {
					errs = append(errs, AssemblyError{st.line, err.Error()})
					continue
				}
				emit(addr, data)
				addr += uint32(len(data))
			}
		case kindInstruction:
			words, err := parseInstruction(name, rest, syms, addr)
			if err != nil {
				errs = append(errs, AssemblyError{st.line, err.Error()})
				addr += instructionSize(name)
				continue
			}
			data := make([]byte, 0, len(words)*4)
			for _, w := range words {
				data = append(data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
			}
			emit(addr, data)
			addr += uint32(len(words)) * 4
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	if !hasEntry {
		entry = 0
	}
	return &Image{Entry: entry, InitialSP: stackPtr, Placements: placements, Labels: syms.labels}, nil
}

type lineKind int

const (
	kindLabel lineKind = iota
	kindConstant
	kindDirective
	kindInstruction
)

// isIdentifier reports whether s is a bare name: a letter or '_'
// followed by letters, digits, or '_', with no surrounding whitespace.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// classify identifies a statement's shape and splits it into a
// name/directive/mnemonic plus whatever text follows it.
func classify(text string) (kind lineKind, name string, rest string) {
	if strings.HasPrefix(text, ".") {
		fields := strings.SplitN(text, " ", 2)
		directive := fields[0]
		rest := ""
		if len(fields) == 2 {
			rest = fields[1]
		}
		return kindDirective, directive, rest
	}
	if strings.HasSuffix(text, ":") && isIdentifier(text[:len(text)-1]) {
		return kindLabel, text[:len(text)-1], ""
	}
	if !strings.Contains(text, "=>") {
		if eq := strings.IndexByte(text, '='); eq >= 0 {
			lhs := strings.TrimSpace(text[:eq])
			if isIdentifier(lhs) {
				return kindConstant, lhs, text[eq+1:]
			}
		}
	}
	fields := strings.SplitN(text, " ", 2)
	mnemonic := fields[0]
	rest = ""
	if len(fields) == 2 {
		rest = fields[1]
	}
	return kindInstruction, mnemonic, rest
}

func countArgs(rest string) int {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 0
	}
	return len(strings.Split(rest, ","))
}

func encodeData(rest string, syms *symbolTable, width int) ([]byte, error) {
	var out []byte
	for _, tok := range strings.Split(rest, ",") {
		tok = strings.TrimSpace(tok)
		v, err := syms.resolve(tok)
		if err != nil {
			return nil, err
		}
		switch width {
		case 1:
			out = append(out, byte(v))
		case 2:
			out = append(out, byte(v), byte(v>>8))
		case 4:
			out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		default:
			return nil, fmt.Errorf("unsupported data width %d", width)
		}
	}
	return out, nil
}

// instructionSize is each mnemonic's footprint in bytes, fixed at 4
// except the `LOAD` pseudo-op, which always reserves two words so
// label addresses never depend on a value only pass 2 can resolve
// (see DESIGN.md).
func instructionSize(mnemonic string) uint32 {
	if mnemonic == "LOAD" {
		return 8
	}
	return 4
}

func trimOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitArrow divides "lhs => rhs" into its two sides. ok is false when
// the instruction carries no destination operand (CMP, TST, PUSH,
// POP, NOP, ...).
func splitArrow(s string) (lhs, rhs string, ok bool) {
	idx := strings.Index(s, "=>")
	if idx < 0 {
		return strings.TrimSpace(s), "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+2:]), true
}
