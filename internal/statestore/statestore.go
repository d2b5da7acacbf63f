// Package statestore persists the simulator's per-sensor state between
// cron invocations as a single JSON document on disk.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lekoianemerik/moist/internal/simulator"
)

// Store reads and writes the whole state document at Path. There is no
// field-level update contract; every save replaces the file.
type Store struct {
	Path string
}

func New(path string) *Store { return &Store{Path: path} }

// Load returns the persisted state map. A missing or unreadable file is
// treated as no prior state: the caller gets an empty map and every
// active sensor will be seeded with defaults during reconciliation.
func (s *Store) Load() map[string]simulator.State {
	state := make(map[string]simulator.State)

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return make(map[string]simulator.State)
	}
	return state
}

// Save writes the full state map atomically: temp file in the same
// directory, then rename over the target.
func (s *Store) Save(state map[string]simulator.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
