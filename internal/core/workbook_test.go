package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes a two-sheet workbook and returns its bytes.
func buildWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	joined := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	rows := [][]any{
		{"Name", "Joined", "Active", "Score", "Code"},
		{"Ana", joined, true, 91.5, "007"},
		{},
		{"Lee", joined.AddDate(0, 1, 0), false, 78, "n/a"},
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	if _, err := f.NewSheet("Totals"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetSheetRow("Totals", "A1", &[]any{"Total", 169.5}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestReadWorkbook(t *testing.T) {
	data := buildWorkbook(t)

	var progress []string
	sheets, err := ReadWorkbook(context.Background(), "book.xlsx", data, func(done, total int, sheet string) {
		progress = append(progress, sheet)
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}

	if len(sheets) != 2 || sheets[0].SheetName != "Sheet1" || sheets[1].SheetName != "Totals" {
		t.Fatalf("sheets = %v, want [Sheet1 Totals]", sheetNames(sheets))
	}
	if len(progress) != 2 {
		t.Errorf("progress callbacks = %v, want one per sheet", progress)
	}

	main := sheets[0]
	if main.RowCount() != 3 {
		t.Fatalf("RowCount() = %d, want 3 (blank row dropped)", main.RowCount())
	}

	ana := main.Row(1)
	if got, ok := ana.At(1).Time(); !ok || !got.Equal(time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Joined = %v (%s), want 2021-06-15 date", ana.At(1), ana.At(1).Kind())
	}
	if got, ok := ana.At(2).Boolean(); !ok || !got {
		t.Errorf("Active = %v (%s), want true", ana.At(2), ana.At(2).Kind())
	}
	if got, ok := ana.At(3).Float(); !ok || got != 91.5 {
		t.Errorf("Score = %v (%s), want 91.5", ana.At(3), ana.At(3).Kind())
	}
	// Text cells still go through coercion.
	if got, ok := ana.At(4).Float(); !ok || got != 7 {
		t.Errorf("Code = %v (%s), want Number 7", ana.At(4), ana.At(4).Kind())
	}

	lee := main.Row(2)
	if got, ok := lee.At(2).Boolean(); !ok || got {
		t.Errorf("Active = %v, want false", lee.At(2))
	}
	if !lee.At(4).IsNull() {
		t.Errorf("Code = %v, want Null", lee.At(4))
	}

	if got, ok := sheets[1].Row(0).At(1).Float(); !ok || got != 169.5 {
		t.Errorf("Totals!B1 = %v, want 169.5", sheets[1].Row(0).At(1))
	}
}

func TestReadWorkbook_Corrupt(t *testing.T) {
	_, err := ReadWorkbook(context.Background(), "bad.xlsx", []byte("not a zip"), nil)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.FileName != "bad.xlsx" || pe.Pattern != "workbook" {
		t.Errorf("ParseError = %+v", pe)
	}
	if MapError(err).Code != "PARSE001" {
		t.Errorf("MapError code = %s, want PARSE001", MapError(err).Code)
	}
}

func TestWorkbookSheetNames(t *testing.T) {
	names, err := WorkbookSheetNames("book.xlsx", buildWorkbook(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Sheet1" || names[1] != "Totals" {
		t.Errorf("names = %v", names)
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"d/m/yy", true},
		{"h:mm", true},
		{"[h]:mm", false},
		{"mm:ss", false},
		{"m/d h:mm", true},
		{"0.00", false},
		{`"day "0`, false},
		{"[$-409]mmmm d", true},
		{"#,##0;[Red]-#,##0", false},
	}
	for _, tt := range tests {
		if got := isDateFormatCode(tt.code); got != tt.want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func sheetNames(ds []*Dataset) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.SheetName
	}
	return out
}
