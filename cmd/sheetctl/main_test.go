package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/source"
	"github.com/JonMunkholm/sheetview/internal/window"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const people = "Name;Score\nAna;1.5\nBo;2\nCy;3\nDi;4\nEve;5\n"

func TestDetect(t *testing.T) {
	zst, err := source.Compress([]byte(people))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	tests := []struct {
		name string
		file string
		data []byte
		want []string
	}{
		{"detected", "people.csv", []byte(people), []string{"delimiter: semicolon (detected)", "format:    Comma-separated values (csv)"}},
		{"from extension", "people.tsv", []byte("a\tb\n1\t2\n"), []string{"delimiter: tab (extension)"}},
		{"compressed", "people.csv.zst", zst, []string{"file:      people.csv.zst", "delimiter: semicolon (detected)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "detect", writeFile(t, tt.file, tt.data))
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestDetect_Rejected(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		code string
	}{
		{"legacy workbook", "old.xls", []byte("x"), "FILE002"},
		{"unknown extension", "notes.pdf", []byte("x"), "FILE002"},
		{"empty", "empty.csv", nil, "FILE003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "detect", writeFile(t, tt.file, tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestDetect_MaxSize(t *testing.T) {
	path := writeFile(t, "people.csv", []byte(people))
	_, err := execute(t, "detect", "--max-size", "10", path)
	if err == nil || !strings.Contains(err.Error(), "FILE001") {
		t.Errorf("err = %v, want FILE001", err)
	}

	_, err = execute(t, "detect", "--max-size", "lots", path)
	if err == nil || !strings.Contains(err.Error(), "--max-size") {
		t.Errorf("err = %v, want invalid --max-size", err)
	}
}

func TestSheets(t *testing.T) {
	f := excelize.NewFile()
	if _, err := f.NewSheet("Totals"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Totals", "A1", "Sum")
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	out, err := execute(t, "sheets", path)
	if err != nil {
		t.Fatalf("sheets: %v", err)
	}
	if out != "Sheet1\nTotals\n" {
		t.Errorf("sheets = %q", out)
	}

	out, err = execute(t, "sheets", writeFile(t, "people.csv", []byte(people)))
	if err != nil {
		t.Fatalf("sheets csv: %v", err)
	}
	if out != core.CSVSheetName+"\n" {
		t.Errorf("csv sheets = %q", out)
	}
}

func TestInspect_Paged(t *testing.T) {
	path := writeFile(t, "people.csv", []byte(people))
	out, err := execute(t, "inspect", "--page-size", "2", "--page", "2", "--frozen", "1", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	for _, want := range []string{"Name", "Score", "Ana", "Di", "Eve", "Page 2 of 2 (5 rows)", "sheet Sheet1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, absent := range []string{"Bo", "Cy"} {
		if strings.Contains(out, absent) {
			t.Errorf("output has off-page row %q:\n%s", absent, out)
		}
	}
}

func TestInspect_Errors(t *testing.T) {
	path := writeFile(t, "people.csv", []byte(people))
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad delimiter", []string{"--delimiter", "ab"}, "invalid --delimiter"},
		{"frozen range", []string{"--frozen", "11"}, "--frozen"},
		{"missing sheet", []string{"--sheet", "Nope"}, "sheet not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"inspect"}, tt.args...)
			_, err := execute(t, append(args, path)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{"comma", ',', false},
		{"TAB", '\t', false},
		{`\t`, '\t', false},
		{"|", '|', false},
		{`"`, 0, true},
		{"::", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDelimiter(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseDelimiter(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefgh", 5, "abcd…"},
		{"unbounded", 0, "unbounded"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestRenderTable_Ragged(t *testing.T) {
	d := core.NewDataset("Sheet1", []core.Row{
		{core.Text("A"), core.Text("B"), core.Text("C")},
		{core.Text("averyveryverylongvalue")},
	})
	resp := core.BuildWindow(d, window.Compute(1, window.Viewport{}, window.DefaultPolicy()))

	out := renderTable(resp, 8)
	if !strings.Contains(out, "averyve…") {
		t.Errorf("long value not truncated:\n%s", out)
	}
	if strings.Contains(out, "averyveryvery") {
		t.Errorf("long value leaked:\n%s", out)
	}
	if got := footer(resp, 3); got != "Rows 1-1 of 1 · sheet Sheet1 · parsed in 3ms" {
		t.Errorf("footer = %q", got)
	}
}
