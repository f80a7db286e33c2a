package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/markup"
)

type memoryStore struct {
	mu         sync.Mutex
	categories map[uuid.UUID]Category
	products   map[uuid.UUID]Product
	tiers      map[uuid.UUID]Tier
	publicHits int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		categories: map[uuid.UUID]Category{},
		products:   map[uuid.UUID]Product{},
		tiers:      map[uuid.UUID]Tier{},
	}
}

func (s *memoryStore) ListCategories(_ context.Context, activeOnly bool) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Category
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (s *memoryStore) GetCategory(_ context.Context, id uuid.UUID) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (s *memoryStore) CreateCategory(_ context.Context, c Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Slug == c.Slug {
			return Category{}, ErrSlugTaken
		}
	}
	c.ID = uuid.New()
	s.categories[c.ID] = c
	return c, nil
}

func (s *memoryStore) UpdateCategory(_ context.Context, c Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return c, nil
}

func (s *memoryStore) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return ErrNotFound
	}
	for _, p := range s.products {
		if p.CategoryID == id {
			return ErrInUse
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *memoryStore) ListProducts(_ context.Context, f ProductFilter) ([]Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	for _, p := range s.products {
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (s *memoryStore) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) CreateProduct(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[p.CategoryID]; !ok {
		return Product{}, ErrUnknownReference
	}
	p.ID = uuid.New()
	s.products[p.ID] = p
	return p, nil
}

func (s *memoryStore) UpdateProduct(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return p, nil
}

func (s *memoryStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	for tid, t := range s.tiers {
		if t.ProductID == id {
			delete(s.tiers, tid)
		}
	}
	return nil
}

func (s *memoryStore) ListTiers(_ context.Context, productID uuid.UUID) ([]Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Tier
	for _, t := range s.tiers {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (s *memoryStore) GetTier(_ context.Context, id uuid.UUID) (Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[id]
	if !ok {
		return Tier{}, ErrNotFound
	}
	return t, nil
}

func (s *memoryStore) CreateTier(_ context.Context, t Tier) (Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	s.tiers[t.ID] = t
	return t, nil
}

func (s *memoryStore) UpdateTier(_ context.Context, t Tier) (Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[t.ID] = t
	return t, nil
}

func (s *memoryStore) DeleteTier(_ context.Context, productID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[id]
	if !ok || t.ProductID != productID {
		return ErrNotFound
	}
	delete(s.tiers, id)
	return nil
}

func (s *memoryStore) ListPublic(ctx context.Context) (PublicRows, error) {
	s.mu.Lock()
	s.publicHits++
	s.mu.Unlock()

	var rows PublicRows
	categories, _ := s.ListCategories(ctx, true)
	rows.Categories = categories
	s.mu.Lock()
	defer s.mu.Unlock()
	activeCategory := map[uuid.UUID]bool{}
	for _, c := range categories {
		activeCategory[c.ID] = true
	}
	activeProduct := map[uuid.UUID]bool{}
	for _, p := range s.products {
		if p.IsActive && activeCategory[p.CategoryID] {
			rows.Products = append(rows.Products, p)
			activeProduct[p.ID] = true
		}
	}
	sort.Slice(rows.Products, func(i, j int) bool { return rows.Products[i].DisplayOrder < rows.Products[j].DisplayOrder })
	for _, t := range s.tiers {
		if t.IsActive && activeProduct[t.ProductID] {
			rows.Tiers = append(rows.Tiers, t)
		}
	}
	sort.Slice(rows.Tiers, func(i, j int) bool { return rows.Tiers[i].DisplayOrder < rows.Tiers[j].DisplayOrder })
	return rows, nil
}

type ruleList struct {
	rules []markup.Rule
	calls int
}

func (l *ruleList) ListForProducts(_ context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) ([]markup.Rule, error) {
	l.calls++
	wanted := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []markup.Rule
	for _, r := range l.rules {
		if r.PartnerID == partnerID && r.ProductID != nil && wanted[*r.ProductID] {
			out = append(out, r)
		}
	}
	return out, nil
}
