package markup

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// memoryStore is an in-memory ruleStore enforcing the scope uniqueness of the real table.
type memoryStore struct {
	mu    sync.Mutex
	rules map[uuid.UUID]Rule
	finds int
}

func newMemoryStore(rules ...Rule) *memoryStore {
	s := &memoryStore{rules: map[uuid.UUID]Rule{}}
	for _, r := range rules {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.rules[r.ID] = r
	}
	return s
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *memoryStore) FindRule(_ context.Context, partnerID, productID uuid.UUID, tierID *uuid.UUID) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	for _, r := range s.rules {
		if r.PartnerID == partnerID && sameID(r.ProductID, &productID) && sameID(r.TierID, tierID) {
			rule := r
			return &rule, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListForProducts(_ context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []Rule
	for _, r := range s.rules {
		if r.PartnerID == partnerID && r.ProductID != nil && wanted[*r.ProductID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) ListByPartner(_ context.Context, partnerID uuid.UUID) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Rule
	for _, r := range s.rules {
		if r.PartnerID == partnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, partnerID, id uuid.UUID) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.PartnerID != partnerID {
		return Rule{}, ErrRuleNotFound
	}
	return r, nil
}

func (s *memoryStore) Create(_ context.Context, rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.PartnerID == rule.PartnerID && sameID(r.ProductID, rule.ProductID) && sameID(r.TierID, rule.TierID) {
			return Rule{}, ErrDuplicateRule
		}
	}
	rule.ID = uuid.New()
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *memoryStore) Update(_ context.Context, rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok || existing.PartnerID != rule.PartnerID {
		return Rule{}, ErrRuleNotFound
	}
	existing.MarkupType = rule.MarkupType
	existing.MarkupValue = rule.MarkupValue
	s.rules[rule.ID] = existing
	return existing, nil
}

func (s *memoryStore) Delete(_ context.Context, partnerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.PartnerID != partnerID {
		return ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

type tierOwners map[uuid.UUID]uuid.UUID

func (t tierOwners) ProductIDForTier(_ context.Context, tierID uuid.UUID) (uuid.UUID, bool, error) {
	owner, ok := t[tierID]
	return owner, ok, nil
}

type partnerDefaults map[uuid.UUID]pricing.Markup

func (p partnerDefaults) DefaultMarkup(_ context.Context, partnerID uuid.UUID) (pricing.Markup, error) {
	return p[partnerID], nil
}
