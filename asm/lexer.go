package asm

import "strings"

// statement is one assembler line after comment stripping and ';'-splitting.
// SPEC_FULL.md §8's scenarios write several instructions on one line
// separated by ';' (e.g. "LDR 5 => V0; LDR 7 => V1; ..."), so a single
// source line can produce several statements; each keeps the source
// line number of the line it came from, for AssemblyError.Line.
type statement struct {
	line int
	text string
}

// lex splits source into statements: '#' starts a line comment unless a
// digit follows it directly (an immediate operand such as "#7"), ';'
// separates multiple statements on one physical line, and blank
// statements are dropped.
func lex(source string) []statement {
	var out []statement
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		for j := 0; j < len(raw); j++ {
			if raw[j] == '#' && !(j+1 < len(raw) && raw[j+1] >= '0' && raw[j+1] <= '9') {
				raw = raw[:j]
				break
			}
		}
		for _, part := range strings.Split(raw, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, statement{line: lineNo, text: part})
		}
	}
	return out
}
