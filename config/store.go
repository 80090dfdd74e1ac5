package config

import (
	"fmt"
	"sync/atomic"
)

// Store hands out the current immutable snapshot and swaps in new ones
// atomically. Readers hold a *Config for as long as they like; a
// reload never changes a snapshot already handed out.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewStore wraps an initial snapshot loaded from path.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// Current returns the live snapshot.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Reload rebuilds the snapshot from disk and swaps it in. On failure
// the previous snapshot stays live.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.cur.Store(cfg)
	return nil
}
