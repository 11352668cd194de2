package core

import (
	"strings"
	"testing"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		want        string
		wantWarning string
	}{
		{
			name: "plain utf-8",
			data: []byte("a,b\n1,2"),
			want: "a,b\n1,2",
		},
		{
			name:        "utf-8 bom stripped",
			data:        append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...),
			want:        "a,b",
			wantWarning: "byte-order mark removed",
		},
		{
			name:        "utf-16 little endian",
			data:        []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0},
			want:        "a,b",
			wantWarning: "utf-16",
		},
		{
			name:        "utf-16 big endian",
			data:        []byte{0xFE, 0xFF, 0, 'a', 0, ';', 0, 'b'},
			want:        "a;b",
			wantWarning: "utf-16",
		},
		{
			name:        "latin-1 bytes",
			data:        []byte("caf\xe9"),
			want:        "café",
			wantWarning: "windows-1252",
		},
		{
			name:        "mojibake repaired",
			data:        []byte("cafÃ©"),
			want:        "café",
			wantWarning: "mojibake repaired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := DecodeText("in.csv", tt.data)
			if got != tt.want {
				t.Errorf("DecodeText() = %q, want %q", got, tt.want)
			}
			if tt.wantWarning == "" {
				if len(warnings) != 0 {
					t.Errorf("unexpected warnings: %v", warnings)
				}
				return
			}
			if len(warnings) == 0 {
				t.Fatalf("no warning, want one containing %q", tt.wantWarning)
			}
			if w := warnings[0]; !strings.Contains(w.Error(), tt.wantWarning) || w.FileName != "in.csv" {
				t.Errorf("warning = %v, want %q for in.csv", w, tt.wantWarning)
			}
		})
	}
}

func TestDecodeText_GenuineAccentsUntouched(t *testing.T) {
	in := "Ångström, naïve, ©"
	got, warnings := DecodeText("x.csv", []byte(in))
	if got != in || len(warnings) != 0 {
		t.Errorf("DecodeText() = %q %v, want input unchanged", got, warnings)
	}
}
