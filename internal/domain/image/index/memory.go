package index

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	items map[string]Entry
	mutex sync.RWMutex
}

// NewMemory builds an in-memory artifact index.
func NewMemory() Store {
	return &memoryStore{
		items: make(map[string]Entry),
	}
}

func (s *memoryStore) Record(_ context.Context, entry Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("artifact path required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mutex.Lock()
	s.items[entry.Path] = entry
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, path string) (Entry, error) {
	s.mutex.RLock()
	entry, ok := s.items[path]
	s.mutex.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return entry, nil
}

func (s *memoryStore) ListBySource(_ context.Context, source string) ([]Entry, error) {
	s.mutex.RLock()
	out := make([]Entry, 0)
	for _, e := range s.items {
		if e.Source == source {
			out = append(out, e)
		}
	}
	s.mutex.RUnlock()
	sortEntries(out)
	return out, nil
}

func (s *memoryStore) Remove(_ context.Context, path string) error {
	s.mutex.Lock()
	delete(s.items, path)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var bytes int64
	sources := make(map[string]struct{})
	for _, e := range s.items {
		bytes += e.Size
		sources[e.Source] = struct{}{}
	}
	return map[string]any{
		"type":    DriverMemory,
		"total":   len(s.items),
		"sources": len(sources),
		"bytes":   bytes,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
