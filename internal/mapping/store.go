package mapping

import (
	"context"
	"sync"

	"github.com/kyleking/ae-columns/internal/schema"
)

// Committer persists a collection after the store accepted a transition
type Committer interface {
	Commit(ctx context.Context, c Collection) error
}

// CommitterFunc adapts a function to Committer
type CommitterFunc func(ctx context.Context, c Collection) error

func (f CommitterFunc) Commit(ctx context.Context, c Collection) error {
	return f(ctx, c)
}

// Store holds the current collection. Each Update reads the current value once and
// writes the result once, so rapid successive edits never overwrite each other.
type Store struct {
	mu        sync.Mutex
	current   Collection
	committer Committer
}

// NewStore creates a store seeded with initial; committer may be nil
func NewStore(initial Collection, committer Committer) *Store {
	return &Store{current: initial, committer: committer}
}

// Snapshot returns the current collection
func (s *Store) Snapshot() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Update applies fn to the current collection. When fn reports a change the result is
// committed and becomes current; a failed commit leaves the previous collection in place.
func (s *Store) Update(ctx context.Context, fn func(Collection) (Collection, bool)) (Collection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.current)
	if !changed {
		return s.current, false, nil
	}

	if s.committer != nil {
		if err := s.committer.Commit(ctx, next); err != nil {
			return s.current, false, err
		}
	}

	s.current = next

	return next, true, nil
}

// Set applies Collection.Set as one transition
func (s *Store) Set(ctx context.Context, provider schema.Provider, column, friendlyName, description string) (Collection, bool, error) {
	return s.Update(ctx, func(c Collection) (Collection, bool) {
		next := c.Set(provider, column, friendlyName, description)
		return next, !next.Equal(c)
	})
}

// Remove applies Collection.Remove as one transition
func (s *Store) Remove(ctx context.Context, column string) (Collection, bool, error) {
	return s.Update(ctx, func(c Collection) (Collection, bool) {
		next := c.Remove(column)
		return next, next.Len() != c.Len()
	})
}
