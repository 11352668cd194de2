package core

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pre-compiled regex for numeric validation (avoids recompilation on each call).
// Rejects partial numbers ("12a"), hex, infinities, and digit separators.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Date patterns, each optionally followed by HH:MM:SS.
var (
	ymdRegex = regexp.MustCompile(`^(\d{4})([-/])(\d{1,2})([-/])(\d{1,2})(?:[ T](\d{1,2}):(\d{2}):(\d{2}))?$`)
	dmyRegex = regexp.MustCompile(`^(\d{1,2})([-/])(\d{1,2})([-/])(\d{4})(?:[ T](\d{1,2}):(\d{2}):(\d{2}))?$`)
)

// Coerce converts a raw field into a typed cell. Rules apply in order:
//
//  1. blank, "null", "n/a" (any case) → Null
//  2. a fully numeric, finite decimal → Number
//  3. "true"/"false" (any case) → Boolean
//  4. YYYY-MM-DD, YYYY/MM/DD, DD/MM/YYYY, DD-MM-YYYY with optional HH:MM:SS → Date
//  5. anything else → Text of the trimmed value
//
// Numbers are tried before dates, so "2024" is a Number.
func Coerce(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return Null()
	}

	if f, ok := parseNumber(s); ok {
		return Number(f)
	}

	if strings.EqualFold(s, "true") {
		return Bool(true)
	}
	if strings.EqualFold(s, "false") {
		return Bool(false)
	}

	if t, ok := parseDate(s); ok {
		return Date(t)
	}

	return Text(s)
}

// CoerceValue converts a value produced by a workbook codec into a cell.
// Strings go through Coerce; native numbers, booleans, and times keep their type.
func CoerceValue(v any) Cell {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return Coerce(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Null()
		}
		return Number(x)
	case float32:
		return CoerceValue(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case bool:
		return Bool(x)
	case time.Time:
		return Date(x)
	case Cell:
		return x
	default:
		return Null()
	}
}

// CoerceRecords converts raw records into rows, checking ctx every
// ContextCheckInterval rows.
func CoerceRecords(ctx context.Context, records [][]string) ([]Row, error) {
	rows := make([]Row, len(records))
	for i, rec := range records {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(Row, len(rec))
		for j, f := range rec {
			row[j] = Coerce(f)
		}
		rows[i] = row
	}
	return rows, nil
}

func parseNumber(s string) (float64, bool) {
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseDate accepts the recognized patterns only when they name a real
// calendar date; 2024-02-30 stays Text.
func parseDate(s string) (time.Time, bool) {
	var year, month, day int
	var clock []string

	if m := ymdRegex.FindStringSubmatch(s); m != nil {
		if m[2] != m[4] {
			return time.Time{}, false
		}
		year, month, day = atoi(m[1]), atoi(m[3]), atoi(m[5])
		clock = m[6:9]
	} else if m := dmyRegex.FindStringSubmatch(s); m != nil {
		if m[2] != m[4] {
			return time.Time{}, false
		}
		day, month, year = atoi(m[1]), atoi(m[3]), atoi(m[5])
		clock = m[6:9]
	} else {
		return time.Time{}, false
	}

	var hh, mm, ss int
	if clock[0] != "" {
		hh, mm, ss = atoi(clock[0]), atoi(clock[1]), atoi(clock[2])
		if hh > 23 || mm > 59 || ss > 59 {
			return time.Time{}, false
		}
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hh, mm, ss, 0, time.UTC)
	// time.Date normalizes overflow; a changed day means the date was invalid.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
