// Package core provides the parsing pipeline and dataset model for tabular files.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// CellKind is the tag of a Cell. It is decided once at parse time.
type CellKind uint8

const (
	KindNull CellKind = iota
	KindNumber
	KindBool
	KindDate
	KindText

	// kindRef marks a dictionary key inside a CompressedDataset. It never
	// appears in a Dataset.
	kindRef
)

// String returns the lowercase name of the kind.
func (k CellKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindText:
		return "text"
	case kindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Cell is one typed value. The zero value is Null.
// Fields are unexported so a cell cannot change kind after construction.
type Cell struct {
	kind CellKind
	num  float64
	b    bool
	t    time.Time
	text string
}

// Null returns an empty cell.
func Null() Cell { return Cell{} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// Bool returns a boolean cell.
func Bool(b bool) Cell { return Cell{kind: KindBool, b: b} }

// Date returns a date cell.
func Date(t time.Time) Cell { return Cell{kind: KindDate, t: t} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

func ref(key string) Cell { return Cell{kind: kindRef, text: key} }

// Kind returns the cell's tag.
func (c Cell) Kind() CellKind { return c.kind }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// Float returns the numeric value and whether the cell is a Number.
func (c Cell) Float() (float64, bool) { return c.num, c.kind == KindNumber }

// Boolean returns the boolean value and whether the cell is a Boolean.
func (c Cell) Boolean() (bool, bool) { return c.b, c.kind == KindBool }

// Time returns the date value and whether the cell is a Date.
func (c Cell) Time() (time.Time, bool) { return c.t, c.kind == KindDate }

// Str returns the text value and whether the cell is Text.
func (c Cell) Str() (string, bool) { return c.text, c.kind == KindText }

// Equal reports whether two cells have the same kind and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindNull:
		return true
	case KindNumber:
		return c.num == o.num || (math.IsNaN(c.num) && math.IsNaN(o.num))
	case KindBool:
		return c.b == o.b
	case KindDate:
		return c.t.Equal(o.t)
	default:
		return c.text == o.text
	}
}

// String formats the cell for display.
// Dates at midnight render as YYYY-MM-DD, otherwise YYYY-MM-DD HH:MM:SS.
func (c Cell) String() string {
	switch c.kind {
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.b)
	case KindDate:
		if c.t.Hour() == 0 && c.t.Minute() == 0 && c.t.Second() == 0 {
			return c.t.Format("2006-01-02")
		}
		return c.t.Format("2006-01-02 15:04:05")
	case KindText, kindRef:
		return c.text
	default:
		return ""
	}
}

// MarshalJSON encodes the cell as its natural JSON value.
// Dates are encoded with the display format.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(c.num)
	case KindBool:
		return json.Marshal(c.b)
	default:
		return json.Marshal(c.String())
	}
}

// estimateSize approximates the resident bytes of a cell.
func (c Cell) estimateSize() int64 {
	const base = 48 // struct header incl. time.Time
	return base + int64(len(c.text))
}

// Row is an ordered sequence of cells. Rows may be ragged.
type Row []Cell

// At returns the cell at column i, or Null when the row is shorter.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Null()
	}
	return r[i]
}

// Strings formats every cell for display.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// Table is read access to a sheet regardless of its resident representation.
type Table interface {
	Name() string
	RowCount() int
	Row(i int) Row
	EstimateSize() int64
}

// Dataset is the canonical parsed table for one sheet.
// The first row conventionally holds headers but is stored as an ordinary Row.
// A Dataset is replaced when re-parsed, never mutated in place.
type Dataset struct {
	SheetName string
	Rows      []Row
}

// NewDataset creates a dataset for the given sheet.
func NewDataset(sheet string, rows []Row) *Dataset {
	return &Dataset{SheetName: sheet, Rows: rows}
}

// Name returns the sheet name.
func (d *Dataset) Name() string { return d.SheetName }

// RowCount returns the number of rows including the header row.
func (d *Dataset) RowCount() int { return len(d.Rows) }

// Row returns row i, or nil when out of range.
func (d *Dataset) Row(i int) Row {
	if i < 0 || i >= len(d.Rows) {
		return nil
	}
	return d.Rows[i]
}

// Header returns the first row, or nil for an empty dataset.
func (d *Dataset) Header() Row { return d.Row(0) }

// EstimateSize approximates the resident bytes of the dataset.
func (d *Dataset) EstimateSize() int64 {
	var n int64
	for _, row := range d.Rows {
		n += 24 // slice header
		for _, c := range row {
			n += c.estimateSize()
		}
	}
	return n
}

// Equal reports whether two datasets are cell-wise equal.
func (d *Dataset) Equal(o *Dataset) bool {
	if d.SheetName != o.SheetName || len(d.Rows) != len(o.Rows) {
		return false
	}
	for i := range d.Rows {
		if len(d.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range d.Rows[i] {
			if !d.Rows[i][j].Equal(o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// FileKind is the declared kind of an input.
type FileKind string

const (
	KindDelimited FileKind = "csv"
	KindWorkbook  FileKind = "workbook"
)

// FileInfo describes a loaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       FileKind  `json:"kind"`
	Size       int64     `json:"size"`
	SizeLabel  string    `json:"size_label"`
	Sheets     []string  `json:"sheets"`
	JobID      string    `json:"job_id,omitempty"`
	JobState   JobState  `json:"job_state"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
	Compressed []string  `json:"compressed,omitempty"`
}

// FormatSize renders a byte count as B, KB, MB, or GB.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	return s + " " + units[i]
}
