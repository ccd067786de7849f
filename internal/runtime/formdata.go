package runtime

import (
	"log/slog"
	"sync"
)

// FormStore holds the entered field values, keyed by field name. Field
// names are unique across the form, so clearing a step's fields is plain
// key deletion.
type FormStore struct {
	logger *slog.Logger

	mu     sync.Mutex
	values map[string]any
}

// NewFormStore creates an empty store.
func NewFormStore(logger *slog.Logger) *FormStore {
	return &FormStore{
		logger: logger,
		values: make(map[string]any),
	}
}

// Get returns the stored value for a field.
func (s *FormStore) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores one field value.
func (s *FormStore) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// All returns a copy of every stored value.
func (s *FormStore) All() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Replace swaps the whole value map, used by snapshot restore.
func (s *FormStore) Replace(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// Reset drops every stored value.
func (s *FormStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any)
}

// ClearFields implements ports.FieldClearer: the named fields of a step
// are deleted from the store. Values are not archived; undoing a skip does
// not bring them back.
func (s *FormStore) ClearFields(stepID string, fields []string) {
	s.mu.Lock()
	cleared := 0
	for _, name := range fields {
		if _, ok := s.values[name]; ok {
			delete(s.values, name)
			cleared++
		}
	}
	s.mu.Unlock()
	if cleared > 0 {
		s.logger.Debug("cleared step fields", "step", stepID, "fields", cleared)
	}
}
