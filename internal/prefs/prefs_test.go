package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTableHeight(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		set     int
		wantErr bool
		want    int
	}{
		{"min", MinTableHeight, false, MinTableHeight},
		{"max", MaxTableHeight, false, MaxTableHeight},
		{"typical", 640, false, 640},
		{"too small", 199, true, DefaultTableHeight},
		{"too large", 2001, true, DefaultTableHeight},
		{"negative", -5, true, DefaultTableHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			err := SetTableHeight(ctx, s, tt.set)
			if tt.wantErr != (err != nil) {
				t.Fatalf("SetTableHeight(%d) error = %v, wantErr %v", tt.set, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidValue) {
				t.Errorf("error = %v, want ErrInvalidValue", err)
			}
			got, err := TableHeight(ctx, s)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("TableHeight = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTableHeight_OutOfRangeStoredValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Set(ctx, KeyTableHeight, 50)

	got, err := TableHeight(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got != DefaultTableHeight {
		t.Errorf("TableHeight = %d, want default", got)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	s := NewFileStore(path)

	if _, ok, err := s.Get(ctx, KeyTableHeight); err != nil || ok {
		t.Fatalf("Get on missing file = ok %v, err %v", ok, err)
	}
	if err := SetTableHeight(ctx, s, 720); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "preferredTableHeight = 720") {
		t.Errorf("file content = %q", data)
	}

	// A second store over the same file sees the value.
	reopened := NewFileStore(path)
	got, err := TableHeight(ctx, reopened)
	if err != nil {
		t.Fatal(err)
	}
	if got != 720 {
		t.Errorf("TableHeight = %d, want 720", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only prefs.toml", len(entries))
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("[preferences\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	if _, _, err := s.Get(context.Background(), KeyTableHeight); err == nil {
		t.Error("expected decode error")
	}
	if h, err := TableHeight(context.Background(), s); err == nil || h != DefaultTableHeight {
		t.Errorf("TableHeight = %d, %v; want default and error", h, err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got, want := DefaultPath(), filepath.Join("/tmp/xdg", "sheetview", "prefs.toml"); got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("memory backend = %T", s)
	}

	path := filepath.Join(t.TempDir(), "p.toml")
	s, err = Open(ctx, "FILE", path, "")
	if err != nil {
		t.Fatal(err)
	}
	if fs, ok := s.(*FileStore); !ok || fs.Path() != path {
		t.Errorf("file backend = %#v", s)
	}

	if _, err := Open(ctx, "postgres", "", ""); err == nil {
		t.Error("postgres without URL should fail")
	}
	if _, err := Open(ctx, "redis", "", ""); err == nil {
		t.Error("unknown backend should fail")
	}
}

// fakeDB records statements and serves one stored row per key.
type fakeDB struct {
	rows  map[string]int32
	execs []string
	err   error
}

type fakeRow struct {
	v   int32
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int32) = r.v
	return nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	if sql == upsertSQL {
		f.rows[args[0].(string)] = args[1].(int32)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{v: v}
}

func TestPGStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: make(map[string]int32)}
	s := &PGStore{db: db}

	if err := s.migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS") {
		t.Errorf("migrate execs = %v", db.execs)
	}

	if got, _ := TableHeight(ctx, s); got != DefaultTableHeight {
		t.Errorf("unset TableHeight = %d", got)
	}
	if err := SetTableHeight(ctx, s, 900); err != nil {
		t.Fatal(err)
	}
	if got, _ := TableHeight(ctx, s); got != 900 {
		t.Errorf("TableHeight = %d, want 900", got)
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}

func TestPGStore_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	s := &PGStore{db: &fakeDB{rows: map[string]int32{}, err: boom}}

	if _, _, err := s.Get(ctx, KeyTableHeight); !errors.Is(err, boom) {
		t.Errorf("Get error = %v", err)
	}
	if err := SetTableHeight(ctx, s, 400); !errors.Is(err, boom) {
		t.Errorf("SetTableHeight error = %v", err)
	}
	if err := s.migrate(ctx); !errors.Is(err, boom) {
		t.Errorf("migrate error = %v", err)
	}
}
