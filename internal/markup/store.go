package markup

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

const scopeConstraint = "markup_rules_scope_key"

var (
	// ErrRuleNotFound is returned when a rule id does not exist.
	ErrRuleNotFound = errors.New("markup rule not found")
	// ErrDuplicateRule is returned when a rule already exists at the same specificity.
	ErrDuplicateRule = errors.New("markup rule already exists for this scope")
	// ErrUnknownReference is returned when partner, product or tier do not exist.
	ErrUnknownReference = errors.New("markup rule references an unknown partner, product or tier")
)

var ruleColumns = []string{"id", "partner_id", "product_id", "tier_id", "markup_type", "markup_value", "created_at", "updated_at"}

// Store persists markup rules in Postgres.
type Store struct {
	DB db.Querier
}

// FindRule implements RuleFinder.
func (s Store) FindRule(ctx context.Context, partnerID, productID uuid.UUID, tierID *uuid.UUID) (*Rule, error) {
	query := db.Builder().Select(ruleColumns...).From("markup_rules").
		Where("partner_id = ?", partnerID).
		Where("product_id = ?", productID)
	if tierID != nil {
		query = query.Where("tier_id = ?", *tierID)
	} else {
		query = query.Where("tier_id IS NULL")
	}
	var rule Rule
	err := db.Get(ctx, s.DB, &rule, query)
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListForProducts implements RuleLister.
func (s Store) ListForProducts(ctx context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) ([]Rule, error) {
	var rules []Rule
	err := db.Select(ctx, s.DB, &rules, db.Builder().
		Select(ruleColumns...).
		From("markup_rules").
		Where("partner_id = ?", partnerID).
		Where(sq.Eq{"product_id": productIDs}))
	return rules, err
}

// ListByPartner returns every rule of a partner, product rules before tier rules.
func (s Store) ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]Rule, error) {
	var rules []Rule
	err := db.Select(ctx, s.DB, &rules, db.Builder().
		Select(ruleColumns...).
		From("markup_rules").
		Where("partner_id = ?", partnerID).
		OrderBy("product_id", "tier_id NULLS FIRST", "created_at"))
	return rules, err
}

// Get loads a rule owned by partnerID.
func (s Store) Get(ctx context.Context, partnerID, id uuid.UUID) (Rule, error) {
	var rule Rule
	err := db.Get(ctx, s.DB, &rule, db.Builder().
		Select(ruleColumns...).
		From("markup_rules").
		Where("id = ? AND partner_id = ?", id, partnerID))
	if db.IsNotFound(err) {
		return Rule{}, ErrRuleNotFound
	}
	return rule, err
}

// Create inserts rule and returns the stored row.
func (s Store) Create(ctx context.Context, rule Rule) (Rule, error) {
	var out Rule
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("markup_rules").
		Columns("partner_id", "product_id", "tier_id", "markup_type", "markup_value").
		Values(rule.PartnerID, rule.ProductID, rule.TierID, rule.MarkupType, rule.MarkupValue).
		Suffix("RETURNING "+strings.Join(ruleColumns, ", ")))
	return out, classify(err)
}

// Update changes the markup of an existing rule. Scope columns are immutable.
func (s Store) Update(ctx context.Context, rule Rule) (Rule, error) {
	var out Rule
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Update("markup_rules").
		Set("markup_type", rule.MarkupType).
		Set("markup_value", rule.MarkupValue).
		Set("updated_at", time.Now().UTC()).
		Where("id = ? AND partner_id = ?", rule.ID, rule.PartnerID).
		Suffix("RETURNING "+strings.Join(ruleColumns, ", ")))
	if db.IsNotFound(err) {
		return Rule{}, ErrRuleNotFound
	}
	return out, classify(err)
}

// Delete removes a rule owned by partnerID.
func (s Store) Delete(ctx context.Context, partnerID, id uuid.UUID) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().Delete("markup_rules").Where("id = ? AND partner_id = ?", id, partnerID))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, scopeConstraint):
		return ErrDuplicateRule
	case db.IsForeignKeyViolation(err):
		return ErrUnknownReference
	}
	return err
}
