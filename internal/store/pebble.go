package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

// PebbleStore persists values in a Pebble database on local disk.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the database in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return openPebble(filepath.Clean(dir), &pebble.Options{})
}

// OpenPebbleMem opens a database backed by an in-memory filesystem.
func OpenPebbleMem() (*PebbleStore, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("store: open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Get(_ context.Context, key string) (string, error) {
	val, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: pebble get %q: %w", key, err)
	}
	defer func() { _ = closer.Close() }()
	return string(val), nil
}

func (p *PebbleStore) Set(_ context.Context, key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("store: pebble set %q: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Delete(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("store: pebble delete %q: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
