package core

// encoding.go turns raw delimited-text bytes into UTF-8 before tokenizing.
//
// Recovery never aborts. Each repair is reported as an *EncodingError warning:
//
//   - UTF-8 byte-order mark: stripped
//   - UTF-16 byte-order mark: decoded to UTF-8
//   - invalid UTF-8: decoded as Windows-1252
//   - mojibake (UTF-8 read as Windows-1252, e.g. "Ã©"): re-encoded when the
//     round trip yields valid UTF-8

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// mojibakeMarkers are sequences that appear when UTF-8 text was decoded as
// Windows-1252 and saved again.
var mojibakeMarkers = []string{"Ã", "â€", "Â"}

// DecodeText converts data to a UTF-8 string, returning any recoveries applied.
func DecodeText(fileName string, data []byte) (string, []*EncodingError) {
	var warnings []*EncodingError
	warn := func(pattern string) {
		warnings = append(warnings, &EncodingError{FileName: fileName, Pattern: pattern})
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
		warn("utf-8 byte-order mark removed")
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, data); err == nil {
			warn("utf-16 byte-order mark, decoded to utf-8")
			return string(out), warnings
		}
	}

	if !utf8.Valid(data) {
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err == nil {
			warn("invalid utf-8, decoded as windows-1252")
			return string(out), warnings
		}
		// Windows-1252 maps every byte, so this is unreachable in practice.
		warn("invalid utf-8, bytes replaced")
		return strings.ToValidUTF8(string(data), "\uFFFD"), warnings
	}

	text := string(data)
	if hasMojibake(text) {
		if fixed, ok := repairMojibake(text); ok {
			warn("mojibake repaired")
			return fixed, warnings
		}
		warn("mojibake detected")
	}
	return text, warnings
}

func hasMojibake(s string) bool {
	for _, m := range mojibakeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// repairMojibake reverses a Windows-1252 misread. It fails when the text holds
// characters outside Windows-1252 or the recovered bytes are not UTF-8.
func repairMojibake(s string) (string, bool) {
	raw, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) || raw == s {
		return "", false
	}
	return raw, true
}
