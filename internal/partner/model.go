package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// DirectSlug identifies the protected system partner used for direct sales.
const DirectSlug = "direct"

// Partner is a reseller with its own branding and default markup.
type Partner struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	Slug               string             `db:"slug" json:"slug"`
	LogoURL            *string            `db:"logo_url" json:"logo_url"`
	PrimaryColor       string             `db:"primary_color" json:"primary_color"`
	SecondaryColor     string             `db:"secondary_color" json:"secondary_color"`
	ContactEmail       *string            `db:"contact_email" json:"contact_email"`
	ContactPhone       *string            `db:"contact_phone" json:"contact_phone"`
	DefaultMarkupType  pricing.MarkupType `db:"default_markup_type" json:"default_markup_type"`
	DefaultMarkupValue decimal.Decimal    `db:"default_markup_value" json:"default_markup_value"`
	IsActive           bool               `db:"is_active" json:"is_active"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// DefaultMarkup returns the partner-wide markup used when no rule matches.
func (p Partner) DefaultMarkup() pricing.Markup {
	return pricing.Markup{Type: p.DefaultMarkupType, Value: p.DefaultMarkupValue}
}

// IsDirect reports whether p is the protected system partner.
func (p Partner) IsDirect() bool {
	return p.Slug == DirectSlug
}

// Branding is the public view of a partner. Markup settings are never exposed.
type Branding struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	LogoURL        *string `json:"logo_url"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	ContactEmail   *string `json:"contact_email"`
	ContactPhone   *string `json:"contact_phone"`
}

// Branding returns the public view of p.
func (p Partner) Branding() Branding {
	return Branding{
		Name:           p.Name,
		Slug:           p.Slug,
		LogoURL:        p.LogoURL,
		PrimaryColor:   p.PrimaryColor,
		SecondaryColor: p.SecondaryColor,
		ContactEmail:   p.ContactEmail,
		ContactPhone:   p.ContactPhone,
	}
}
