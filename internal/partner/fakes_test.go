package partner

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.Mutex
	partners map[uuid.UUID]Partner
	inUse    map[uuid.UUID]bool
	lookups  int
}

func newMemoryStore(partners ...Partner) *memoryStore {
	s := &memoryStore{partners: map[uuid.UUID]Partner{}, inUse: map[uuid.UUID]bool{}}
	for _, p := range partners {
		s.partners[p.ID] = p
	}
	return s
}

func (s *memoryStore) List(_ context.Context, f ListFilter) ([]Partner, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Partner
	for _, p := range s.partners {
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok {
		return Partner{}, ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) FindBySlug(_ context.Context, slug string) (Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	for _, p := range s.partners {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Partner{}, ErrNotFound
}

func (s *memoryStore) Create(_ context.Context, p Partner) (Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.partners {
		if existing.Slug == p.Slug {
			return Partner{}, ErrSlugTaken
		}
	}
	p.ID = uuid.New()
	s.partners[p.ID] = p
	return p, nil
}

func (s *memoryStore) Update(_ context.Context, p Partner) (Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[p.ID]; !ok {
		return Partner{}, ErrNotFound
	}
	for _, existing := range s.partners {
		if existing.Slug == p.Slug && existing.ID != p.ID {
			return Partner{}, ErrSlugTaken
		}
	}
	s.partners[p.ID] = p
	return p, nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[id]; !ok {
		return ErrNotFound
	}
	if s.inUse[id] {
		return ErrInUse
	}
	delete(s.partners, id)
	return nil
}
