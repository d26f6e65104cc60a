// Package memory provides an in-memory credential store. It backs tests and
// embedded use where credentials should not outlive the process.
package memory

import (
	"context"
	"sync"

	"github.com/clinicore/authkit/core/session"
)

// Store keeps the persisted credential keys in process memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New returns an empty in-memory credential store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Load returns the stored record, or session.ErrNotFound when the stored
// state is absent or partial.
func (s *Store) Load(_ context.Context) (session.Record, error) {
	s.mu.RLock()
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	s.mu.RUnlock()
	return session.RecordFromValues(values)
}

// Save stores the record.
func (s *Store) Save(_ context.Context, record session.Record) error {
	values, err := record.Values()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Clear drops any stored credentials.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// Put sets a single raw key, leaving the others untouched. Tests use it to
// simulate partial persisted state.
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

var _ session.Store = (*Store)(nil)
