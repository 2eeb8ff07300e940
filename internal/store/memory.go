package store

import (
	"context"
	"sort"
	"sync"

	"github.com/i474232898/weather-widgets/internal/widget"
)

// MemoryStore is a concurrency-safe in-memory widget repository.
type MemoryStore struct {
	mu sync.RWMutex

	// widgets in insertion order
	widgets []widget.Widget
	// location_norm -> id
	byNorm map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byNorm: make(map[string]string),
	}
}

// List returns widgets newest first; equal timestamps keep reverse insertion order.
func (s *MemoryStore) List(_ context.Context) ([]widget.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]widget.Widget, 0, len(s.widgets))
	for i := len(s.widgets) - 1; i >= 0; i-- {
		out = append(out, s.widgets[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Create inserts w unless its normalized location is already taken.
func (s *MemoryStore) Create(_ context.Context, w widget.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNorm[w.LocationNorm]; exists {
		return widget.ErrDuplicate
	}
	s.byNorm[w.LocationNorm] = w.ID
	s.widgets = append(s.widgets, w)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.widgets {
		if w.ID != id {
			continue
		}
		delete(s.byNorm, w.LocationNorm)
		s.widgets = append(s.widgets[:i], s.widgets[i+1:]...)
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ widget.Repository = (*MemoryStore)(nil)
