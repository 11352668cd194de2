package core

import (
	"errors"
	"testing"
)

func TestValidateInput(t *testing.T) {
	loaded := func(name string) bool { return name == "taken.csv" }

	tests := []struct {
		name           string
		file           string
		size           int64
		wantErr        error
		wantCode       string
		wantKind       FileKind
		wantCompressed bool
	}{
		{name: "csv", file: "data.csv", size: 10, wantKind: KindDelimited},
		{name: "upper case extension", file: "DATA.CSV", size: 10, wantKind: KindDelimited},
		{name: "workbook", file: "book.xlsx", size: 10, wantKind: KindWorkbook},
		{name: "compressed tsv", file: "log.tsv.zst", size: 10, wantKind: KindDelimited, wantCompressed: true},
		{name: "blank name", file: "  ", size: 10, wantCode: "FILE006"},
		{name: "unknown extension", file: "photo.png", size: 10, wantErr: ErrUnsupportedType, wantCode: "FILE002"},
		{name: "legacy workbook", file: "old.xls", size: 10, wantErr: ErrUnsupportedType, wantCode: "FILE002"},
		{name: "bare zst", file: "blob.zst", size: 10, wantErr: ErrUnsupportedType},
		{name: "empty", file: "e.csv", size: 0, wantErr: ErrEmptyFile, wantCode: "FILE003"},
		{name: "too large", file: "big.csv", size: 101, wantErr: ErrFileTooLarge, wantCode: "FILE001"},
		{name: "at limit", file: "edge.csv", size: 100, wantKind: KindDelimited},
		{name: "duplicate", file: "taken.csv", size: 10, wantErr: ErrDuplicateFile, wantCode: "FILE004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, compressed, err := ValidateInput(tt.file, tt.size, 100, loaded)

			if tt.wantErr == nil && tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateInput() error = %v", err)
				}
				if f.Kind != tt.wantKind || compressed != tt.wantCompressed {
					t.Errorf("got kind %s compressed %v, want %s %v", f.Kind, compressed, tt.wantKind, tt.wantCompressed)
				}
				return
			}

			var ive *InputValidationError
			if !errors.As(err, &ive) {
				t.Fatalf("error = %v, want *InputValidationError", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantCode != "" {
				if code := MapError(err).Code; code != tt.wantCode {
					t.Errorf("MapError code = %s, want %s", code, tt.wantCode)
				}
			}
		})
	}
}

func TestValidateInput_DefaultCeiling(t *testing.T) {
	if _, _, err := ValidateInput("a.csv", DefaultMaxFileSize, 0, nil); err != nil {
		t.Errorf("size at default ceiling rejected: %v", err)
	}
	if _, _, err := ValidateInput("a.csv", DefaultMaxFileSize+1, 0, nil); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestFormatFor(t *testing.T) {
	f, compressed, ok := FormatFor("Report.TSV")
	if !ok || compressed || f.Delimiter != '\t' {
		t.Errorf("FormatFor(Report.TSV) = %+v %v %v", f, compressed, ok)
	}
	if _, _, ok := FormatFor("noext"); ok {
		t.Error("FormatFor(noext) matched a format")
	}
}

func TestSupportedExtensions(t *testing.T) {
	got := SupportedExtensions()
	want := []string{".csv", ".tsv", ".txt", ".xlsm", ".xlsx"}
	if len(got) != len(want) {
		t.Fatalf("SupportedExtensions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SupportedExtensions()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register did not panic on a duplicate extension")
		}
	}()
	Register(Format{Ext: ".CSV"})
}
