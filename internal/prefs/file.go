package prefs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// fileData is the on-disk layout:
//
//	[preferences]
//	preferredTableHeight = 640
type fileData struct {
	Preferences map[string]int `toml:"preferences"`
}

// FileStore keeps preferences in a TOML file. Every Set rewrites the file
// through a temporary file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path. The file and its directory are
// created on first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

// DefaultPath returns $XDG_CONFIG_HOME/sheetview/prefs.toml, falling back
// to ~/.config. It returns "" when neither can be determined.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sheetview", "prefs.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sheetview", "prefs.toml")
}

func (f *FileStore) load() (fileData, error) {
	var d fileData
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return d, nil
}

func (f *FileStore) Get(_ context.Context, key string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, err := f.load()
	if err != nil {
		return 0, false, err
	}
	v, ok := d.Preferences[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, err := f.load()
	if err != nil {
		return err
	}
	if d.Preferences == nil {
		d.Preferences = make(map[string]int)
	}
	d.Preferences[key] = value

	data, err := toml.Marshal(d)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Close() error { return nil }
