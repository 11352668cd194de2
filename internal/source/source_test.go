package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := []byte("Name;Age\nAna;30\n")
	path := writeFile(t, "people.csv", content)

	name, data, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if name != "people.csv" {
		t.Errorf("got name %q, want %q", name, "people.csv")
	}
	if !bytes.Equal(data, content) {
		t.Errorf("got %q, want %q", data, content)
	}
}

func TestLoad_Compressed(t *testing.T) {
	content := bytes.Repeat([]byte("a,b,c\n1,2,3\n"), 100)
	packed, err := Compress(content)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	path := writeFile(t, "data.csv.zst", packed)

	_, data, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("decompressed %d bytes, want %d", len(data), len(content))
	}
}

func TestLoad_SizeLimit(t *testing.T) {
	tests := []struct {
		name string
		file string
		zst  bool
	}{
		{name: "plain", file: "big.csv"},
		{name: "compressed", file: "big.csv.zst", zst: true},
	}

	content := bytes.Repeat([]byte("x"), 4096)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := content
			if tt.zst {
				var err error
				if data, err = Compress(content); err != nil {
					t.Fatalf("Compress: %v", err)
				}
			}
			path := writeFile(t, tt.file, data)

			_, _, err := Load(path, 1024)
			if !errors.Is(err, ErrSizeLimit) {
				t.Errorf("got %v, want ErrSizeLimit", err)
			}
		})
	}
}

func TestFile_Head(t *testing.T) {
	path := writeFile(t, "short.txt", []byte("abc"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	head, err := f.Head(1000)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if string(head) != "abc" {
		t.Errorf("got %q, want %q", head, "abc")
	}
	if f.Size() != 3 {
		t.Errorf("Size = %d, want 3", f.Size())
	}
}

func TestCountingReader_Progress(t *testing.T) {
	var seen []int
	r := NewCountingReader(bytes.NewReader(make([]byte, 200)), 200)
	r.OnProgress = func(p int) { seen = append(seen, p) }

	buf := make([]byte, 50)
	for {
		if _, err := r.Read(buf); err != nil {
			break
		}
	}

	if r.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", r.Progress())
	}
	want := []int{25, 50, 75, 100}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}
