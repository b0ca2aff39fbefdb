// Package store persists the identifier of the last bonded peripheral so the
// CLI can reconnect without scanning.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// State is the persisted document
type State struct {
	DeviceID string    `yaml:"device_id"`
	SavedAt  time.Time `yaml:"saved_at,omitempty"`
}

// Store reads and writes State as a YAML file
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store backed by path. The file and its directory are created on Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored state. A missing file is an empty state.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (State, error) {
	var st State
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return st, nil
	case err != nil:
		return st, fmt.Errorf("failed to read state %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	return st, nil
}

// DeviceID returns the remembered peripheral, or "" when none is stored
func (s *Store) DeviceID() (string, error) {
	st, err := s.Load()
	return st.DeviceID, err
}

// Save remembers id. The file is replaced atomically.
func (s *Store) Save(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("device id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(State{DeviceID: id, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear forgets the stored peripheral. Clearing an absent file succeeds.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}
