// Package store holds the authoritative match state and its version.
//
// All mutations flow through the hub loop, so there is exactly one writer.
// The mutex only guards concurrent Snapshot readers (HTTP handlers) against
// that writer.
package store

import (
	"sync"

	"github.com/fgcaster/overlay/internal/match"
)

// Snapshot is a point-in-time copy of the state with its version. Versions
// increase by exactly one per accepted mutation and never decrease, even
// across restarts (the persisted version seeds New).
type Snapshot struct {
	Version int         `json:"version"`
	State   match.State `json:"state"`
}

type Store struct {
	mu      sync.RWMutex
	version int
	state   match.State
	catalog match.Catalog
}

func New(initial Snapshot, catalog match.Catalog) *Store {
	return &Store{
		version: initial.Version,
		state:   initial.State.Clone(),
		catalog: catalog,
	}
}

// Apply validates and applies one command. On success it bumps the version
// and returns the new snapshot; on rejection the state and version are
// untouched and the prior snapshot comes back with the error.
func (s *Store) Apply(cmd match.Command) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := match.Apply(s.state, cmd, s.catalog)
	if err != nil {
		return s.snapshotLocked(), err
	}

	s.state = next
	s.version++
	return s.snapshotLocked(), nil
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Version returns the current version without copying the state.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, State: s.state.Clone()}
}
