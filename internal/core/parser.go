package core

// parser.go implements the quote-aware CSV tokenizer.
//
// The scanner makes a single pass over line-ending-normalized text with two
// states, unquoted and quoted. Per character, in priority order:
//
//  1. `"` while quoted and followed by `"`: literal quote, advance two
//  2. `"` while unquoted with an empty field: enter quoted
//  3. `"` while quoted: leave quoted
//  4. delimiter while unquoted: close the field
//  5. newline while unquoted: close the field and commit the row unless blank
//  6. anything else: append to the field
//
// End of input flushes the pending field and row as if a newline followed.
// The tokenizer never fails on text; malformed quoting is read literally.

import (
	"context"
	"strings"
)

// ContextCheckInterval is how often (in committed rows) the parser checks
// for cancellation.
var ContextCheckInterval = 100

// ProgressRowInterval is how often (in committed rows) the parser reports progress.
var ProgressRowInterval = 1000

// ParseProgressFunc receives the number of committed rows and the byte
// position reached out of the total.
type ParseProgressFunc func(rows, pos, total int)

// Parser tokenizes delimited text into rows of raw string fields.
type Parser struct {
	Delimiter  rune
	OnProgress ParseProgressFunc
}

// NormalizeLineEndings collapses CR LF and bare CR to LF.
func NormalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ParseText normalizes line endings and tokenizes text with the given delimiter.
func ParseText(text string, delim rune) [][]string {
	p := Parser{Delimiter: delim}
	rows, _ := p.Parse(context.Background(), NormalizeLineEndings(text))
	return rows
}

// Parse tokenizes already-normalized text. Rows whose fields are all blank
// after trimming are dropped. The only error returned is ctx.Err().
func (p *Parser) Parse(ctx context.Context, text string) ([][]string, error) {
	delim := p.Delimiter
	if delim == 0 {
		delim = ','
	}
	// Candidate delimiters are ASCII, so byte scanning cannot split a rune.
	d := byte(delim)
	if delim >= 0x80 {
		d = ','
	}

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		fieldLen int
		quoted   bool
	)

	closeField := func() {
		row = append(row, field.String())
		field.Reset()
		fieldLen = 0
	}
	commitRow := func() {
		if !isBlankRecord(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	n := len(text)
	for i := 0; i < n; {
		c := text[i]
		switch {
		case c == '"' && quoted && i+1 < n && text[i+1] == '"':
			field.WriteByte('"')
			fieldLen++
			i += 2
			continue
		case c == '"' && !quoted && fieldLen == 0:
			quoted = true
		case c == '"' && quoted:
			quoted = false
		case c == d && !quoted:
			closeField()
		case c == '\n' && !quoted:
			closeField()
			before := len(rows)
			commitRow()
			if len(rows) != before {
				if len(rows)%ContextCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				if p.OnProgress != nil && len(rows)%ProgressRowInterval == 0 {
					p.OnProgress(len(rows), i, n)
				}
			}
		default:
			field.WriteByte(c)
			fieldLen++
		}
		i++
	}

	if fieldLen > 0 || len(row) > 0 || quoted {
		closeField()
		commitRow()
	}

	return rows, nil
}

func isBlankRecord(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Quote returns field quoted for the delimiter when it contains the
// delimiter, a quote, a line break, or would otherwise be read as quoted.
func Quote(field string, delim rune) string {
	if field == "" {
		return field
	}
	needs := strings.ContainsRune(field, delim) ||
		strings.ContainsAny(field, "\"\n\r")
	if !needs {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// FormatRecord serializes one row of raw fields with proper quoting.
func FormatRecord(fields []string, delim rune) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(delim)
		}
		b.WriteString(Quote(f, delim))
	}
	return b.String()
}

// FormatRecords serializes rows, one per line, each terminated by LF.
func FormatRecords(rows [][]string, delim rune) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(FormatRecord(r, delim))
		b.WriteByte('\n')
	}
	return b.String()
}
