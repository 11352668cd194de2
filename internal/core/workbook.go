package core

// workbook.go adapts excelize as the workbook codec.
//
// Sheets are read sequentially because excelize serializes access to a
// worksheet anyway. Each cell is classified while reading (bool, serial date,
// number, text) and the conversion into typed rows then runs per sheet in
// parallel.

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// Built-in number format IDs that render as dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 45: true, 46: true, 47: true,
}

type rawKind uint8

const (
	rawText rawKind = iota
	rawNumber
	rawBool
	rawDate
)

type rawCell struct {
	value string
	kind  rawKind
}

type workbookReader struct {
	f          *excelize.File
	name       string
	date1904   bool
	dateStyles map[int]bool
}

// SheetProgressFunc is called after each sheet is read.
type SheetProgressFunc func(done, total int, sheet string)

// ReadWorkbook decodes workbook bytes into one Dataset per sheet, in sheet order.
func ReadWorkbook(ctx context.Context, fileName string, data []byte, onSheet SheetProgressFunc) ([]*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{FileName: fileName, Pattern: "workbook", Err: err}
	}
	defer f.Close()

	wr := &workbookReader{f: f, name: fileName, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wr.date1904 = *props.Date1904
	}

	names := f.GetSheetList()
	raw := make([][][]rawCell, len(names))
	for i, sheet := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := wr.readSheet(sheet)
		if err != nil {
			return nil, err
		}
		raw[i] = cells
		if onSheet != nil {
			onSheet(i+1, len(names), sheet)
		}
	}

	sheets := make([]*Dataset, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range names {
		g.Go(func() error {
			rows, err := wr.convert(gctx, raw[i])
			if err != nil {
				return err
			}
			sheets[i] = NewDataset(names[i], rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

// WorkbookSheetNames lists sheet names without reading cell data.
func WorkbookSheetNames(fileName string, data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{FileName: fileName, Pattern: "workbook", Err: err}
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (wr *workbookReader) readSheet(sheet string) ([][]rawCell, error) {
	rows, err := wr.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{FileName: wr.name, Sheet: sheet, Pattern: "sheet", Err: err}
	}

	out := make([][]rawCell, 0, len(rows))
	for r, row := range rows {
		if isBlankRecord(row) {
			continue
		}
		cells := make([]rawCell, len(row))
		for c, v := range row {
			cells[c] = rawCell{value: v, kind: wr.classify(sheet, c+1, r+1, v)}
		}
		out = append(out, cells)
	}
	return out, nil
}

// classify inspects cell metadata only for values that look numeric, since
// those are the only ones whose meaning depends on type or number format.
func (wr *workbookReader) classify(sheet string, col, row int, v string) rawKind {
	if !numericRegex.MatchString(strings.TrimSpace(v)) {
		return rawText
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return rawText
	}

	typ, err := wr.f.GetCellType(sheet, axis)
	if err != nil {
		return rawText
	}
	switch typ {
	case excelize.CellTypeBool:
		return rawBool
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return rawText
	}

	style, err := wr.f.GetCellStyle(sheet, axis)
	if err == nil && wr.isDateStyle(style) {
		return rawDate
	}
	return rawNumber
}

func (wr *workbookReader) isDateStyle(idx int) bool {
	if v, ok := wr.dateStyles[idx]; ok {
		return v
	}
	isDate := false
	if st, err := wr.f.GetStyle(idx); err == nil && st != nil {
		isDate = builtinDateFormats[st.NumFmt] ||
			(st.CustomNumFmt != nil && isDateFormatCode(*st.CustomNumFmt))
	}
	wr.dateStyles[idx] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format renders a date.
// Quoted literals and bracketed sections ([Red], [$-409]) are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "yd") || (strings.Contains(s, "m") && strings.Contains(s, "h"))
}

func (wr *workbookReader) convert(ctx context.Context, cells [][]rawCell) ([]Row, error) {
	rows := make([]Row, len(cells))
	for i, raw := range cells {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(Row, len(raw))
		for j, c := range raw {
			row[j] = wr.cell(c)
		}
		rows[i] = row
	}
	return rows, nil
}

func (wr *workbookReader) cell(c rawCell) Cell {
	v := strings.TrimSpace(c.value)
	switch c.kind {
	case rawBool:
		return Bool(v == "1")
	case rawDate:
		serial, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Coerce(v)
		}
		t, err := excelize.ExcelDateToTime(serial, wr.date1904)
		if err != nil {
			return Number(serial)
		}
		return Date(t)
	case rawNumber:
		if f, ok := parseNumber(v); ok {
			return Number(f)
		}
	}
	return Coerce(c.value)
}
