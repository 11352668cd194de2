// Package prefs persists user display preferences.
//
// Only scalar integer values are stored, keyed by a fixed name. Dataset
// content is never persisted. Three backends implement Store: an in-process
// map, a TOML file in the user's config directory, and a PostgreSQL table.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// KeyTableHeight names the preferred table height in pixels.
const KeyTableHeight = "preferredTableHeight"

// Table height bounds in pixels.
const (
	DefaultTableHeight = 600
	MinTableHeight     = 200
	MaxTableHeight     = 2000
)

// ErrInvalidValue rejects a preference outside its allowed range.
var ErrInvalidValue = errors.New("invalid preference value")

// Store reads and writes preference values.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (int, bool, error)
	Set(ctx context.Context, key string, value int) error
	Close() error
}

// TableHeight returns the stored table height, or DefaultTableHeight when
// unset or out of range.
func TableHeight(ctx context.Context, s Store) (int, error) {
	h, ok, err := s.Get(ctx, KeyTableHeight)
	if err != nil {
		return DefaultTableHeight, fmt.Errorf("read %s: %w", KeyTableHeight, err)
	}
	if !ok || h < MinTableHeight || h > MaxTableHeight {
		return DefaultTableHeight, nil
	}
	return h, nil
}

// SetTableHeight validates and stores the table height.
func SetTableHeight(ctx context.Context, s Store, h int) error {
	if h < MinTableHeight || h > MaxTableHeight {
		return fmt.Errorf("%w: table height %d outside %d-%d", ErrInvalidValue, h, MinTableHeight, MaxTableHeight)
	}
	if err := s.Set(ctx, KeyTableHeight, h); err != nil {
		return fmt.Errorf("write %s: %w", KeyTableHeight, err)
	}
	return nil
}

// Open returns the store for a backend name: "memory", "file" or
// "postgres". path is used by the file backend (empty means DefaultPath)
// and databaseURL by the postgres backend.
func Open(ctx context.Context, backend, path, databaseURL string) (Store, error) {
	switch strings.ToLower(backend) {
	case "memory", "":
		return NewMemoryStore(), nil
	case "file":
		if path == "" {
			path = DefaultPath()
		}
		if path == "" {
			return nil, errors.New("prefs: no config directory for the file backend")
		}
		return NewFileStore(path), nil
	case "postgres":
		return NewPGStore(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q", backend)
	}
}
