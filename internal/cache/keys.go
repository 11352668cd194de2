package cache

import (
	"strconv"
	"strings"
)

// sep cannot appear in file IDs (UUIDs) and is unlikely in sheet names.
const sep = "\x1f"

// DataKey identifies a parsed sheet.
func DataKey(fileID, sheet string) string {
	return fileID + sep + sheet
}

// RenderKey identifies a computed window of a sheet. The file ID is part of
// the key so windows of a replaced file never match.
func RenderKey(fileID, sheet string, start, end, frozen int) string {
	var b strings.Builder
	b.WriteString(fileID)
	b.WriteString(sep)
	b.WriteString(sheet)
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(start))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(end))
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(frozen))
	return b.String()
}

// FilePrefix matches every data and render key of a file.
func FilePrefix(fileID string) string {
	return fileID + sep
}

// SheetPrefix matches every render key of one sheet.
func SheetPrefix(fileID, sheet string) string {
	return fileID + sep + sheet + sep
}

// HasPrefix returns a RemoveIf predicate for keys starting with prefix.
func HasPrefix(prefix string) func(string) bool {
	return func(k string) bool { return strings.HasPrefix(k, prefix) }
}
