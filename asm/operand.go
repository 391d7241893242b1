package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/seis/isa"
)

// parseInt accepts decimal, "0x"/"0X"-prefixed hex, and a leading '-'.
func parseInt(tok string) (int64, error) {
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	base := 10
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		base = 16
		tok = tok[2:]
	}
	v, err := strconv.ParseInt(tok, base, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", tok)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// looksLikeNumber reports whether tok starts like a numeric literal (a
// digit or '-'), distinguishing a number for parseInt from a symbol
// reference.
func looksLikeNumber(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '-' || (c >= '0' && c <= '9')
}

func isFloatLiteral(tok string) bool {
	t := strings.TrimPrefix(tok, "-")
	return strings.ContainsAny(t, ".eE") && !strings.HasPrefix(t, "0x") && !strings.HasPrefix(t, "0X")
}

func parseReg(tok string) (isa.Reg, error) {
	r, ok := isa.LookupReg(tok)
	if !ok {
		return 0, fmt.Errorf("not a register: %q", tok)
	}
	return r, nil
}

// addrOperand is the parsed form of a load/store address expression,
// mirroring isa.Instruction's Mode/Base/Index/Offset fields directly.
type addrOperand struct {
	mode   isa.AddrMode
	base   isa.Reg
	index  isa.Reg
	offset int32
}

// parseAddrOperand parses the addressing-mode syntax accepted by
// LBR/SBR/LSR/SSR/LLR/SLR: "$0xHHHH" (zero page), "%N" (stack offset),
// "(Reg)" (indirect), "(Base,Index)" (indexed), "N(Base)" (offset), each
// optionally followed by a trailing '!' selecting the volatile variant
// (not valid on zero-page or stack-offset forms, which have no
// volatile encoding).
func parseAddrOperand(tok string) (addrOperand, error) {
	volatile := false
	if strings.HasSuffix(tok, "!") {
		volatile = true
		tok = tok[:len(tok)-1]
	}

	switch {
	case strings.HasPrefix(tok, "$"):
		if volatile {
			return addrOperand{}, fmt.Errorf("zero-page addressing has no volatile form: %q", tok)
		}
		v, err := parseInt(tok[1:])
		if err != nil {
			return addrOperand{}, err
		}
		return addrOperand{mode: isa.AddrZeroPage, offset: int32(v)}, nil

	case strings.HasPrefix(tok, "%"):
		if volatile {
			return addrOperand{}, fmt.Errorf("stack-offset addressing has no volatile form: %q", tok)
		}
		v, err := parseInt(tok[1:])
		if err != nil {
			return addrOperand{}, err
		}
		return addrOperand{mode: isa.AddrStackOffset, offset: int32(v)}, nil

	case strings.Contains(tok, "("):
		open := strings.IndexByte(tok, '(')
		if !strings.HasSuffix(tok, ")") {
			return addrOperand{}, fmt.Errorf("unbalanced parens in address: %q", tok)
		}
		prefix := tok[:open]
		inner := tok[open+1 : len(tok)-1]

		fields := strings.Split(inner, ",")
		switch len(fields) {
		case 1:
			base, err := parseReg(strings.TrimSpace(fields[0]))
			if err != nil {
				return addrOperand{}, err
			}
			if prefix == "" {
				mode := isa.AddrIndirect
				if volatile {
					mode = isa.AddrVolatileIndirect
				}
				return addrOperand{mode: mode, base: base}, nil
			}
			off, err := parseInt(prefix)
			if err != nil {
				return addrOperand{}, err
			}
			mode := isa.AddrOffset
			if volatile {
				mode = isa.AddrVolatileOffset
			}
			return addrOperand{mode: mode, base: base, offset: int32(off)}, nil
		case 2:
			if prefix != "" {
				return addrOperand{}, fmt.Errorf("indexed addressing takes no offset prefix: %q", tok)
			}
			base, err := parseReg(strings.TrimSpace(fields[0]))
			if err != nil {
				return addrOperand{}, err
			}
			index, err := parseReg(strings.TrimSpace(fields[1]))
			if err != nil {
				return addrOperand{}, err
			}
			mode := isa.AddrIndexed
			if volatile {
				mode = isa.AddrVolatileIndexed
			}
			return addrOperand{mode: mode, base: base, index: index}, nil
		default:
			return addrOperand{}, fmt.Errorf("malformed address: %q", tok)
		}

	default:
		return addrOperand{}, fmt.Errorf("malformed address: %q", tok)
	}
}
