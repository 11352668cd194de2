package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// CompressedSuffix marks an input compressed with zstd.
const CompressedSuffix = ".zst"

// Format describes how inputs with a given extension are read.
type Format struct {
	Ext       string   `json:"ext"`
	Kind      FileKind `json:"kind"`
	Label     string   `json:"label"`
	Supported bool     `json:"supported"`
	Delimiter rune     `json:"-"` // 0 means detect
}

var (
	formats   = make(map[string]Format)
	formatsMu sync.RWMutex
)

func init() {
	Register(Format{Ext: ".csv", Kind: KindDelimited, Label: "Comma-separated values", Supported: true})
	Register(Format{Ext: ".tsv", Kind: KindDelimited, Label: "Tab-separated values", Supported: true, Delimiter: '\t'})
	Register(Format{Ext: ".txt", Kind: KindDelimited, Label: "Delimited text", Supported: true})
	Register(Format{Ext: ".xlsx", Kind: KindWorkbook, Label: "Excel workbook", Supported: true})
	Register(Format{Ext: ".xlsm", Kind: KindWorkbook, Label: "Excel macro-enabled workbook", Supported: true})
	Register(Format{Ext: ".xls", Kind: KindWorkbook, Label: "Legacy Excel workbook"})
}

// Register adds an input format.
// Panics if the extension is already registered.
func Register(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	f.Ext = strings.ToLower(f.Ext)
	if _, exists := formats[f.Ext]; exists {
		panic(fmt.Sprintf("format already registered: %s", f.Ext))
	}
	formats[f.Ext] = f
}

// FormatFor returns the format for a file name, ignoring a trailing
// CompressedSuffix. The bool reports whether the name was compressed.
func FormatFor(name string) (Format, bool, bool) {
	lower := strings.ToLower(name)
	compressed := strings.HasSuffix(lower, CompressedSuffix)
	if compressed {
		lower = strings.TrimSuffix(lower, CompressedSuffix)
	}

	formatsMu.RLock()
	defer formatsMu.RUnlock()

	f, ok := formats[filepath.Ext(lower)]
	return f, compressed, ok
}

// Formats returns every registered format, sorted by extension.
func Formats() []Format {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	result := make([]Format, 0, len(formats))
	for _, f := range formats {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ext < result[j].Ext })
	return result
}

// SupportedExtensions lists the extensions accepted for loading.
func SupportedExtensions() []string {
	var exts []string
	for _, f := range Formats() {
		if f.Supported {
			exts = append(exts, f.Ext)
		}
	}
	return exts
}
