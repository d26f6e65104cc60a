// Package file provides a JSON-file credential store: the single durable
// local key-value store the session persists into between process runs.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/clinicore/authkit/core/session"
)

var (
	// ErrReadFile is returned when the credential file cannot be read.
	ErrReadFile = errors.New("failed to read credential file")
	// ErrWriteFile is returned when the credential file cannot be written.
	ErrWriteFile = errors.New("failed to write credential file")
)

// Store persists the credential keys as a JSON object in a single file.
// Writes go through a temp file and rename, so a crash mid-write never
// leaves a torn record behind. Safe for concurrent use within one process;
// cross-process consistency is last-writer-wins.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a file-backed credential store at the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored record, or session.ErrNotFound when the file is
// absent or holds only partial state.
func (s *Store) Load(_ context.Context) (session.Record, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return session.Record{}, session.ErrNotFound
		}
		return session.Record{}, errors.Join(ErrReadFile, err)
	}

	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return session.Record{}, errors.Join(session.ErrDecodeRecord, err)
	}
	return session.RecordFromValues(values)
}

// Save writes the record atomically.
func (s *Store) Save(_ context.Context, record session.Record) error {
	values, err := record.Values()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return errors.Join(session.ErrEncodeRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return errors.Join(ErrWriteFile, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Join(ErrWriteFile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Join(ErrWriteFile, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Join(ErrWriteFile, err)
	}
	return nil
}

// Clear removes the credential file. A missing file is a no-op.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Join(ErrWriteFile, err)
	}
	return nil
}

var _ session.Store = (*Store)(nil)
