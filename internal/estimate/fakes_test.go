package estimate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/catalog"
	"github.com/seijin4ka/CostNavigator-sub000/internal/markup"
)

type fakeCatalog struct {
	products map[uuid.UUID]catalog.Product
	tiers    map[uuid.UUID]catalog.Tier
	calls    int
}

func (c *fakeCatalog) FindProductsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	c.calls++
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok && p.IsActive {
			out[id] = p
		}
	}
	return out, nil
}

func (c *fakeCatalog) FindTiersByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Tier, error) {
	c.calls++
	out := map[uuid.UUID]catalog.Tier{}
	for _, id := range ids {
		if t, ok := c.tiers[id]; ok && t.IsActive {
			out[id] = t
		}
	}
	return out, nil
}

type fakeRules struct {
	rules []markup.Rule
}

func (f *fakeRules) ListForProducts(_ context.Context, partnerID uuid.UUID, _ []uuid.UUID) ([]markup.Rule, error) {
	var out []markup.Rule
	for _, r := range f.rules {
		if r.PartnerID == partnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// memoryStore is a Writer and estimateStore that can be told to fail.
type memoryStore struct {
	mu sync.Mutex

	headers map[uuid.UUID]Estimate
	items   map[uuid.UUID][]Item

	// collisions rejects the next N header inserts as reference collisions.
	collisions     int
	headerAttempts int
	failItemAt     int // 1-based; 0 never fails
	itemCalls      int
	failDelete     bool
	deleteCalls    int
	failList       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{headers: map[uuid.UUID]Estimate{}, items: map[uuid.UUID][]Item{}}
}

func (s *memoryStore) CreateHeader(_ context.Context, e Estimate) (Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerAttempts++
	if s.collisions > 0 {
		s.collisions--
		return Estimate{}, ErrDuplicateReference
	}
	for _, existing := range s.headers {
		if existing.ReferenceNumber == e.ReferenceNumber {
			return Estimate{}, ErrDuplicateReference
		}
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	s.headers[e.ID] = e
	return e, nil
}

func (s *memoryStore) CreateItem(_ context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemCalls++
	if s.failItemAt > 0 && s.itemCalls == s.failItemAt {
		return Item{}, errors.New("connection reset by peer")
	}
	if _, ok := s.headers[item.EstimateID]; !ok {
		return Item{}, fmt.Errorf("estimate %s missing", item.EstimateID)
	}
	item.ID = uuid.New()
	s.items[item.EstimateID] = append(s.items[item.EstimateID], item)
	return item, nil
}

func (s *memoryStore) DeleteHeader(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.failDelete {
		return errors.New("database unavailable")
	}
	if _, ok := s.headers[id]; !ok {
		return ErrNotFound
	}
	delete(s.headers, id)
	delete(s.items, id)
	return nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.headers[id]
	if !ok {
		return Estimate{}, ErrNotFound
	}
	e.Items = append([]Item{}, s.items[id]...)
	return e, nil
}

func (s *memoryStore) GetByReference(ctx context.Context, ref string) (Estimate, error) {
	s.mu.Lock()
	var id uuid.UUID
	for _, e := range s.headers {
		if e.ReferenceNumber == ref {
			id = e.ID
		}
	}
	s.mu.Unlock()
	return s.Get(ctx, id)
}

func (s *memoryStore) List(_ context.Context, f ListFilter) ([]Estimate, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, 0, s.failList
	}
	var all []Estimate
	for _, e := range s.headers {
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.PartnerID != nil && e.PartnerID != *f.PartnerID {
			continue
		}
		all = append(all, e)
	}
	total := int64(len(all))
	start := int(f.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return all[start:end], total, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.headers[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	s.headers[id] = e
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DeleteHeader(ctx, id)
}

type seqRefs struct {
	n int
}

func (r *seqRefs) Next() (string, error) {
	r.n++
	return fmt.Sprintf("EST-TEST-%08d", r.n), nil
}

type recordingNotifier struct {
	created []Estimate
	err     error
}

func (n *recordingNotifier) EstimateCreated(_ context.Context, e Estimate) error {
	n.created = append(n.created, e)
	return n.err
}
