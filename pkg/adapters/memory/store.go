package memory

import (
	"context"
	"sync"

	"github.com/quillform/stepflow/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// Save persists the snapshot in memory. The snapshot is deep-copied so the
// store holds its own isolated version, matching serialization semantics.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	copied := cloneSnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the snapshot from memory. A copy is returned so callers
// cannot mutate stored state through a shared pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSnapshot(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

func cloneSnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.History = append([]string(nil), snap.History...)
	out.Visited = append([]string(nil), snap.Visited...)

	if snap.ActiveConditions != nil {
		out.ActiveConditions = make(map[string]string, len(snap.ActiveConditions))
		for k, v := range snap.ActiveConditions {
			out.ActiveConditions[k] = v
		}
	}
	if snap.ActiveItems != nil {
		out.ActiveItems = make(map[string]string, len(snap.ActiveItems))
		for k, v := range snap.ActiveItems {
			out.ActiveItems[k] = v
		}
	}
	if snap.Skipped != nil {
		out.Skipped = make(map[string]*domain.SkipEntry, len(snap.Skipped))
		for id, entry := range snap.Skipped {
			clone := *entry
			clone.FieldsCleared = append([]string(nil), entry.FieldsCleared...)
			out.Skipped[id] = &clone
		}
	}
	if snap.FormData != nil {
		out.FormData = make(map[string]any, len(snap.FormData))
		for k, v := range snap.FormData {
			out.FormData[k] = v
		}
	}
	return &out
}
