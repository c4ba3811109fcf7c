// Package state persists the tailer's read positions so the agent can
// resume where it left off after a restart.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the on-disk shape: byte offsets per session log plus the
// time of the last successful delivery.
type State struct {
	FilePositions map[string]int64 `json:"filePositions"`
	LastSync      time.Time        `json:"lastSync"`
}

// New returns an empty State with an initialized positions map.
func New() State {
	return State{FilePositions: map[string]int64{}}
}

// Read loads the state file at path. It never fails: a missing or
// unreadable or corrupt file yields an empty state, which at worst
// causes a rescan and duplicate delivery (the collector deduplicates
// on its side and delivery is at-least-once anyway).
func Read(path string) State {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return New()
	}
	if s.FilePositions == nil {
		s.FilePositions = map[string]int64{}
	}
	return s
}

// Clear removes the state file. Missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// Tracker owns the in-memory state and writes it through to disk on
// every update. Safe for concurrent use: the tailer goroutine records
// positions while the run loop records sync times.
type Tracker struct {
	mu    sync.Mutex
	path  string
	state State
}

// NewTracker loads any existing state from path and returns a tracker
// persisting to it.
func NewTracker(path string) *Tracker {
	return &Tracker{path: path, state: Read(path)}
}

// Position returns the recorded byte offset for file, 0 if unseen.
func (t *Tracker) Position(file string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.FilePositions[file]
}

// SetPosition records the offset for file and persists the state.
func (t *Tracker) SetPosition(file string, offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.FilePositions[file] = offset
	return t.persist()
}

// MarkSynced records the time of a successful delivery and persists.
func (t *Tracker) MarkSynced(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastSync = at
	return t.persist()
}

// Snapshot returns a copy of the current state for display.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	s.FilePositions = maps.Clone(t.state.FilePositions)
	return s
}

// persist writes the state atomically via a temp file + os.Rename.
// Callers must hold t.mu.
func (t *Tracker) persist() error {
	data, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("failed to persist agent state: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(t.path), "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist agent state: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist agent state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist agent state: %w", err)
	}
	if err = os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("failed to persist agent state: %w", err)
	}
	return nil
}
