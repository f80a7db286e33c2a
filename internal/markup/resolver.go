package markup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// RuleFinder looks up the rule at exactly one specificity level. A nil tierID
// matches only rules whose tier is unset. Absence is reported as (nil, nil).
type RuleFinder interface {
	FindRule(ctx context.Context, partnerID, productID uuid.UUID, tierID *uuid.UUID) (*Rule, error)
}

// RuleLister loads every rule a partner has for the given products.
type RuleLister interface {
	ListForProducts(ctx context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) ([]Rule, error)
}

// Resolver applies the most-specific-wins cascade: tier rule, then product
// rule, then the partner default.
type Resolver struct {
	Rules RuleFinder
}

// Resolve returns the effective markup for partner/product/tier. A tier rule
// is only considered when tierID is given.
func (r Resolver) Resolve(ctx context.Context, partnerID, productID uuid.UUID, tierID *uuid.UUID, def pricing.Markup) (Resolution, error) {
	if tierID != nil {
		rule, err := r.Rules.FindRule(ctx, partnerID, productID, tierID)
		if err != nil {
			return Resolution{}, fmt.Errorf("find tier rule: %w", err)
		}
		if rule != nil {
			return fromRule(*rule, SourceProductTier), nil
		}
	}
	rule, err := r.Rules.FindRule(ctx, partnerID, productID, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("find product rule: %w", err)
	}
	if rule != nil {
		return fromRule(*rule, SourceProduct), nil
	}
	return fromDefault(def), nil
}

// Snapshot is the set of a partner's rules read at one point in time, so a
// whole cart resolves against a consistent view with a single query.
type Snapshot struct {
	def     pricing.Markup
	product map[uuid.UUID]Rule
	tier    map[[2]uuid.UUID]Rule
}

// LoadSnapshot reads the partner's rules for productIDs in one round trip.
func LoadSnapshot(ctx context.Context, rules RuleLister, partnerID uuid.UUID, productIDs []uuid.UUID, def pricing.Markup) (*Snapshot, error) {
	snap := NewSnapshot(def, nil)
	if len(productIDs) == 0 {
		return snap, nil
	}
	list, err := rules.ListForProducts(ctx, partnerID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load markup rules: %w", err)
	}
	return NewSnapshot(def, list), nil
}

// NewSnapshot indexes rules by specificity. Partner-wide rows without a
// product are not part of the cascade and are skipped.
func NewSnapshot(def pricing.Markup, rules []Rule) *Snapshot {
	snap := &Snapshot{
		def:     def,
		product: make(map[uuid.UUID]Rule),
		tier:    make(map[[2]uuid.UUID]Rule),
	}
	for _, rule := range rules {
		if rule.ProductID == nil {
			continue
		}
		if rule.TierID != nil {
			snap.tier[[2]uuid.UUID{*rule.ProductID, *rule.TierID}] = rule
			continue
		}
		snap.product[*rule.ProductID] = rule
	}
	return snap
}

// Resolve applies the same cascade as Resolver.Resolve against the snapshot.
func (s *Snapshot) Resolve(productID uuid.UUID, tierID *uuid.UUID) Resolution {
	if tierID != nil {
		if rule, ok := s.tier[[2]uuid.UUID{productID, *tierID}]; ok {
			return fromRule(rule, SourceProductTier)
		}
	}
	if rule, ok := s.product[productID]; ok {
		return fromRule(rule, SourceProduct)
	}
	return fromDefault(s.def)
}
