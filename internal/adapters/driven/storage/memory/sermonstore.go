package memory

import (
	"context"
	"sync"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure SermonStore implements the interface.
var _ driven.SermonStore = (*SermonStore)(nil)

// SermonStore is an in-memory implementation of driven.SermonStore for
// testing. Aggregates are deep-copied on the way in and out so callers
// never share state with the store.
type SermonStore struct {
	mu      sync.RWMutex
	sermons map[string]*domain.Sermon
	order   []string // insertion order, for stable listings
}

// NewSermonStore creates a new in-memory sermon store.
func NewSermonStore() *SermonStore {
	return &SermonStore{
		sermons: make(map[string]*domain.Sermon),
	}
}

// Save stores or updates a sermon aggregate.
func (s *SermonStore) Save(_ context.Context, sermon *domain.Sermon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sermons[sermon.ID]; !exists {
		s.order = append(s.order, sermon.ID)
	}
	s.sermons[sermon.ID] = copySermon(sermon)
	return nil
}

// Get retrieves a sermon by local ID.
func (s *SermonStore) Get(_ context.Context, id string) (*domain.Sermon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sermon, ok := s.sermons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySermon(sermon), nil
}

// GetByRemoteID retrieves a sermon by its backend ID.
func (s *SermonStore) GetByRemoteID(_ context.Context, remoteID string) (*domain.Sermon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if s.sermons[id].RemoteID == remoteID {
			return copySermon(s.sermons[id]), nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns all sermons for a user in insertion order.
func (s *SermonStore) List(_ context.Context, userID string) ([]domain.Sermon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Sermon
	for _, id := range s.order {
		if s.sermons[id].UserID == userID {
			result = append(result, *copySermon(s.sermons[id]))
		}
	}
	return result, nil
}

// ListNeedingSync returns all sermons with unpushed mutations.
func (s *SermonStore) ListNeedingSync(_ context.Context, userID string) ([]domain.Sermon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Sermon
	for _, id := range s.order {
		sermon := s.sermons[id]
		if sermon.UserID == userID && sermon.NeedsSync {
			result = append(result, *copySermon(sermon))
		}
	}
	return result, nil
}

// Delete removes a sermon and its children.
func (s *SermonStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sermons[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sermons, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// copySermon deep-copies an aggregate including children.
func copySermon(in *domain.Sermon) *domain.Sermon {
	out := *in
	if in.LastSyncedAt != nil {
		t := *in.LastSyncedAt
		out.LastSyncedAt = &t
	}
	if in.Transcript != nil {
		tr := *in.Transcript
		out.Transcript = &tr
	}
	if in.Summary != nil {
		sm := *in.Summary
		out.Summary = &sm
	}
	if in.Notes != nil {
		out.Notes = make([]domain.Note, len(in.Notes))
		copy(out.Notes, in.Notes)
	}
	return &out
}
