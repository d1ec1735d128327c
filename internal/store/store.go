package store

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("store: key not found")

// Keys kept by the client. Per-setting playback preferences use PrefKey.
const (
	KeyToken    = "token"
	KeyTab      = "tab"
	KeySubtitle = "subtitle"
	prefPrefix  = "pref:"
)

// PrefKey returns the key of a named playback preference.
func PrefKey(name string) string {
	return prefPrefix + name
}

// ValidKey reports whether key is one the client is allowed to keep.
func ValidKey(key string) bool {
	switch key {
	case KeyToken, KeyTab, KeySubtitle:
		return true
	}
	return strings.HasPrefix(key, prefPrefix) && len(key) > len(prefPrefix)
}

// Store is a string-keyed persistent map for client conveniences.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore keeps values for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// GetOr returns the stored value or def when the key is missing or the
// store fails.
func GetOr(ctx context.Context, s Store, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}
