package people

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store, used when no database is configured
// and in tests.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Person
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]Person{}}
}

func (s *MemoryStore) GetPerson(_ context.Context, id string) (Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.m[id]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) PutPerson(_ context.Context, p Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.ID] = p
	return nil
}

func (s *MemoryStore) ListPeople(_ context.Context) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Person, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
