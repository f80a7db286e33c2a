package markup

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

type ruleStore interface {
	RuleFinder
	ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]Rule, error)
	Get(ctx context.Context, partnerID, id uuid.UUID) (Rule, error)
	Create(ctx context.Context, rule Rule) (Rule, error)
	Update(ctx context.Context, rule Rule) (Rule, error)
	Delete(ctx context.Context, partnerID, id uuid.UUID) error
}

// TierOwner reports which product a tier belongs to.
type TierOwner interface {
	ProductIDForTier(ctx context.Context, tierID uuid.UUID) (uuid.UUID, bool, error)
}

// PartnerDefaults returns the default markup configured on a partner.
type PartnerDefaults interface {
	DefaultMarkup(ctx context.Context, partnerID uuid.UUID) (pricing.Markup, error)
}

// Service manages markup rules for the admin panel.
type Service struct {
	store    ruleStore
	tiers    TierOwner
	partners PartnerDefaults
	resolver Resolver
	cache    *cache.JSON
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    ruleStore
	Tiers    TierOwner
	Partners PartnerDefaults
	// Cache holds the priced public catalogs, dropped whenever a rule changes.
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:    cfg.Store,
		tiers:    cfg.Tiers,
		partners: cfg.Partners,
		resolver: Resolver{Rules: cfg.Store},
		cache:    cfg.Cache,
		logger:   cfg.Logger,
	}
}

// RuleInput is the payload for creating a rule.
type RuleInput struct {
	ProductID   *uuid.UUID      `json:"product_id" validate:"required"`
	TierID      *uuid.UUID      `json:"tier_id"`
	MarkupType  string          `json:"markup_type" validate:"required,oneof=percentage fixed"`
	MarkupValue decimal.Decimal `json:"markup_value"`
}

// UpdateInput is the payload for changing a rule's markup.
type UpdateInput struct {
	MarkupType  string          `json:"markup_type" validate:"required,oneof=percentage fixed"`
	MarkupValue decimal.Decimal `json:"markup_value"`
}

// List returns the partner's rules.
func (s *Service) List(ctx context.Context, partnerID uuid.UUID) ([]Rule, error) {
	rules, err := s.store.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, common.NewPersistenceError("failed to list markup rules", err)
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

// Create validates and stores a new rule. A tier rule must name the product
// the tier belongs to.
func (s *Service) Create(ctx context.Context, partnerID uuid.UUID, in RuleInput) (Rule, error) {
	if err := common.Validate(in); err != nil {
		return Rule{}, err
	}
	if err := validateValue(in.MarkupValue); err != nil {
		return Rule{}, err
	}
	if in.TierID != nil {
		if err := s.checkTierOwnership(ctx, *in.ProductID, *in.TierID); err != nil {
			return Rule{}, err
		}
	}
	rule, err := s.store.Create(ctx, Rule{
		PartnerID:   partnerID,
		ProductID:   in.ProductID,
		TierID:      in.TierID,
		MarkupType:  pricing.MarkupType(in.MarkupType),
		MarkupValue: in.MarkupValue,
	})
	if err != nil {
		return Rule{}, mapStoreError(err)
	}
	s.logger.Info().
		Str("partner_id", partnerID.String()).
		Str("rule_id", rule.ID.String()).
		Msg("markup rule created")
	s.invalidate(ctx)
	return rule, nil
}

// Update changes the markup of an existing rule.
func (s *Service) Update(ctx context.Context, partnerID, ruleID uuid.UUID, in UpdateInput) (Rule, error) {
	if err := common.Validate(in); err != nil {
		return Rule{}, err
	}
	if err := validateValue(in.MarkupValue); err != nil {
		return Rule{}, err
	}
	rule, err := s.store.Update(ctx, Rule{
		ID:          ruleID,
		PartnerID:   partnerID,
		MarkupType:  pricing.MarkupType(in.MarkupType),
		MarkupValue: in.MarkupValue,
	})
	if err != nil {
		return Rule{}, mapStoreError(err)
	}
	s.invalidate(ctx)
	return rule, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, partnerID, ruleID uuid.UUID) error {
	if err := s.store.Delete(ctx, partnerID, ruleID); err != nil {
		return mapStoreError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, cache.PrefixCatalog); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

// Preview resolves the effective markup for a product/tier so admins can
// check which level of the cascade applies.
func (s *Service) Preview(ctx context.Context, partnerID, productID uuid.UUID, tierID *uuid.UUID) (Resolution, error) {
	def, err := s.partners.DefaultMarkup(ctx, partnerID)
	if err != nil {
		return Resolution{}, err
	}
	res, err := s.resolver.Resolve(ctx, partnerID, productID, tierID, def)
	if err != nil {
		return Resolution{}, common.NewPersistenceError("failed to resolve markup", err)
	}
	return res, nil
}

func (s *Service) checkTierOwnership(ctx context.Context, productID, tierID uuid.UUID) error {
	owner, ok, err := s.tiers.ProductIDForTier(ctx, tierID)
	if err != nil {
		return common.NewPersistenceError("failed to load tier", err)
	}
	if !ok {
		return common.NewNotFound("tier", tierID)
	}
	if owner != productID {
		return common.NewValidationError("tier does not belong to product", map[string]string{"tier_id": "must belong to product_id"})
	}
	return nil
}

func validateValue(v decimal.Decimal) error {
	if v.IsNegative() {
		return common.NewValidationError("validation failed", map[string]string{"markup_value": "must be at least 0"})
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, ErrRuleNotFound):
		return common.NewNotFound("markup rule", nil)
	case errors.Is(err, ErrDuplicateRule):
		return common.NewConflict(ErrDuplicateRule.Error(), err)
	case errors.Is(err, ErrUnknownReference):
		return common.NewValidationError(ErrUnknownReference.Error(), nil)
	}
	return common.NewPersistenceError("markup rule storage failed", err)
}
