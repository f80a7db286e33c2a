// Package catalog owns categories, products and their pricing tiers, and
// serves the partner-priced public catalog.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// PricingModel describes how a product is billed.
type PricingModel string

const (
	PricingTier          PricingModel = "tier"
	PricingUsage         PricingModel = "usage"
	PricingTierPlusUsage PricingModel = "tier_plus_usage"
	PricingCustom        PricingModel = "custom"
)

// Valid reports whether m is a known pricing model.
func (m PricingModel) Valid() bool {
	switch m {
	case PricingTier, PricingUsage, PricingTierPlusUsage, PricingCustom:
		return true
	}
	return false
}

// Category groups products on the public page.
type Category struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	Description  *string   `db:"description" json:"description"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a sellable service.
type Product struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	CategoryID   uuid.UUID    `db:"category_id" json:"category_id"`
	Name         string       `db:"name" json:"name"`
	Slug         string       `db:"slug" json:"slug"`
	Description  *string      `db:"description" json:"description"`
	PricingModel PricingModel `db:"pricing_model" json:"pricing_model"`
	DisplayOrder int          `db:"display_order" json:"display_order"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Tier is a pricing plan of a product. This is the admin view and carries
// internal prices; the public catalog uses PublicTier.
type Tier struct {
	ID                    uuid.UUID        `db:"id" json:"id"`
	ProductID             uuid.UUID        `db:"product_id" json:"product_id"`
	Name                  string           `db:"name" json:"name"`
	Slug                  string           `db:"slug" json:"slug"`
	BasePrice             decimal.Decimal  `db:"base_price" json:"base_price"`
	SellingPrice          *decimal.Decimal `db:"selling_price" json:"selling_price"`
	UsageUnit             *string          `db:"usage_unit" json:"usage_unit"`
	UsageUnitPrice        *decimal.Decimal `db:"usage_unit_price" json:"usage_unit_price"`
	SellingUsageUnitPrice *decimal.Decimal `db:"selling_usage_unit_price" json:"selling_usage_unit_price"`
	UsageIncluded         *decimal.Decimal `db:"usage_included" json:"usage_included"`
	DisplayOrder          int              `db:"display_order" json:"display_order"`
	IsActive              bool             `db:"is_active" json:"is_active"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// PricingTier returns the fields the pricing engine needs.
func (t Tier) PricingTier() pricing.Tier {
	return pricing.Tier{
		BasePrice:             t.BasePrice,
		SellingPrice:          t.SellingPrice,
		UsageUnit:             t.UsageUnit,
		UsageUnitPrice:        t.UsageUnitPrice,
		SellingUsageUnitPrice: t.SellingUsageUnitPrice,
		UsageIncluded:         t.UsageIncluded,
	}
}

// PublicTier is a tier as shown to end customers: final prices only.
type PublicTier struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Price          decimal.Decimal  `json:"price"`
	UsageUnit      *string          `json:"usage_unit"`
	UsageUnitPrice *decimal.Decimal `json:"usage_unit_price"`
	UsageIncluded  *decimal.Decimal `json:"usage_included"`
}

// PublicProduct is an active product with its active tiers.
type PublicProduct struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Description  *string      `json:"description"`
	PricingModel PricingModel `json:"pricing_model"`
	Tiers        []PublicTier `json:"tiers"`
}

// PublicCategory is an active category with its products.
type PublicCategory struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description *string         `json:"description"`
	Products    []PublicProduct `json:"products"`
}
