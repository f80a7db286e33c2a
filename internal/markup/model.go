package markup

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// Source names the level of the cascade that produced a markup.
type Source string

const (
	SourceProductTier    Source = "product_tier"
	SourceProduct        Source = "product"
	SourcePartnerDefault Source = "partner_default"
)

// Rule is a partner markup override for a product, or for one tier of it.
type Rule struct {
	ID          uuid.UUID          `db:"id" json:"id"`
	PartnerID   uuid.UUID          `db:"partner_id" json:"partner_id"`
	ProductID   *uuid.UUID         `db:"product_id" json:"product_id"`
	TierID      *uuid.UUID         `db:"tier_id" json:"tier_id"`
	MarkupType  pricing.MarkupType `db:"markup_type" json:"markup_type"`
	MarkupValue decimal.Decimal    `db:"markup_value" json:"markup_value"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// Markup returns the rule as an applicable markup.
func (r Rule) Markup() pricing.Markup {
	return pricing.Markup{Type: r.MarkupType, Value: r.MarkupValue}
}

// Resolution is the outcome of the cascade for one partner/product/tier triple.
type Resolution struct {
	Type   pricing.MarkupType `json:"type"`
	Value  decimal.Decimal    `json:"value"`
	Source Source             `json:"source"`
	RuleID *uuid.UUID         `json:"rule_id,omitempty"`
}

// Markup returns the resolution as an applicable markup.
func (r Resolution) Markup() pricing.Markup {
	return pricing.Markup{Type: r.Type, Value: r.Value}
}

func fromRule(rule Rule, source Source) Resolution {
	id := rule.ID
	return Resolution{Type: rule.MarkupType, Value: rule.MarkupValue, Source: source, RuleID: &id}
}

func fromDefault(def pricing.Markup) Resolution {
	return Resolution{Type: def.Type, Value: def.Value, Source: SourcePartnerDefault}
}
