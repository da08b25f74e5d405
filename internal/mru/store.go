// Package mru maintains the per-repository most-recently-used branch lists.
package mru

import (
	"strings"
	"sync"
)

// MaxStored caps how many branch names are kept per repository.
const MaxStored = 20

// Normalize reduces a ref name to its branch short name. A fully-qualified
// ref like "refs/heads/foo" or "heads/foo" becomes "foo". Idempotent.
func Normalize(name string) string {
	name = strings.TrimPrefix(name, "refs/heads/")
	name = strings.TrimPrefix(name, "heads/")
	return name
}

// Persistence is the key-value layer backing the MRU lists. Save replaces the
// whole list for a repository in one shot, so concurrent writers race cleanly
// (last write wins) instead of interleaving.
type Persistence interface {
	// Load returns the stored list for a repository path. Absent keys yield
	// an empty list, not an error.
	Load(repoPath string) ([]string, error)
	// Save replaces the stored list for a repository path.
	Save(repoPath string, branches []string) error
}

// Store implements the MRU contract over a Persistence layer.
type Store struct {
	mu          sync.Mutex
	persistence Persistence
}

// NewStore creates a store over the given persistence layer.
func NewStore(p Persistence) *Store {
	return &Store{persistence: p}
}

// RecordVisit marks a branch as most recently used for a repository:
// normalize, remove any existing occurrence, prepend, truncate, persist.
func (s *Store) RecordVisit(repoPath, branch string) error {
	name := Normalize(branch)
	if name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.persistence.Load(repoPath)
	if err != nil {
		return err
	}

	updated := make([]string, 0, len(stored)+1)
	updated = append(updated, name)
	for _, b := range stored {
		if Normalize(b) == name {
			continue
		}
		updated = append(updated, Normalize(b))
	}
	if len(updated) > MaxStored {
		updated = updated[:MaxStored]
	}

	return s.persistence.Save(repoPath, updated)
}

// Ordered returns the deduplicated, normalized list in stored order.
// Duplicates are resolved first-seen-wins.
func (s *Store) Ordered(repoPath string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.persistence.Load(repoPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	out := make([]string, 0, len(stored))
	for _, b := range stored {
		name := Normalize(b)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// MemoryPersistence is an in-memory Persistence, used in tests and as a
// degraded fallback when the database cannot be opened.
type MemoryPersistence struct {
	mu    sync.Mutex
	lists map[string][]string
}

var _ Persistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates an empty in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{lists: make(map[string][]string)}
}

// Load returns a copy of the stored list for a repository path.
func (m *MemoryPersistence) Load(repoPath string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.lists[repoPath]
	out := make([]string, len(stored))
	copy(out, stored)
	return out, nil
}

// Save replaces the stored list for a repository path.
func (m *MemoryPersistence) Save(repoPath string, branches []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]string, len(branches))
	copy(stored, branches)
	m.lists[repoPath] = stored
	return nil
}
