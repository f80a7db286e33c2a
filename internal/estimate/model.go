// Package estimate builds, stores and serves priced customer estimates.
package estimate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the admin-driven lifecycle state of an estimate.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusExpired:
		return true
	}
	return false
}

// Estimate is a persisted estimate header plus its line items.
type Estimate struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PartnerID       uuid.UUID       `db:"partner_id" json:"partner_id"`
	PartnerName     string          `db:"partner_name" json:"partner_name"`
	PartnerSlug     string          `db:"partner_slug" json:"partner_slug"`
	ReferenceNumber string          `db:"reference_number" json:"reference_number"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerEmail   string          `db:"customer_email" json:"customer_email"`
	CustomerCompany *string         `db:"customer_company" json:"customer_company"`
	CustomerPhone   *string         `db:"customer_phone" json:"customer_phone"`
	Notes           *string         `db:"notes" json:"notes"`
	Status          Status          `db:"status" json:"status"`
	TotalMonthly    decimal.Decimal `db:"total_monthly" json:"total_monthly"`
	TotalYearly     decimal.Decimal `db:"total_yearly" json:"total_yearly"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	Items           []Item          `db:"-" json:"items"`
}

// Item is an immutable priced line of an estimate. Names are snapshots taken
// at creation time.
type Item struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	EstimateID    uuid.UUID        `db:"estimate_id" json:"estimate_id"`
	ProductID     *uuid.UUID       `db:"product_id" json:"product_id"`
	TierID        *uuid.UUID       `db:"tier_id" json:"tier_id"`
	ProductName   string           `db:"product_name" json:"product_name"`
	TierName      *string          `db:"tier_name" json:"tier_name"`
	Quantity      int              `db:"quantity" json:"quantity"`
	UsageQuantity *decimal.Decimal `db:"usage_quantity" json:"usage_quantity"`
	BasePrice     decimal.Decimal  `db:"base_price" json:"base_price"`
	MarkupAmount  decimal.Decimal  `db:"markup_amount" json:"markup_amount"`
	FinalPrice    decimal.Decimal  `db:"final_price" json:"final_price"`
	Position      int              `db:"position" json:"position"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// PublicItem is the customer-facing view of a line.
type PublicItem struct {
	ProductName   string           `json:"product_name"`
	TierName      *string          `json:"tier_name"`
	Quantity      int              `json:"quantity"`
	UsageQuantity *decimal.Decimal `json:"usage_quantity"`
	FinalPrice    decimal.Decimal  `json:"final_price"`
}

// Public is the customer-facing view of an estimate. Internal pricing fields
// and contact email are not included.
type Public struct {
	ReferenceNumber string          `json:"reference_number"`
	CustomerName    string          `json:"customer_name"`
	CustomerCompany *string         `json:"customer_company"`
	CustomerPhone   *string         `json:"customer_phone"`
	PartnerName     string          `json:"partner_name"`
	Status          Status          `json:"status"`
	TotalMonthly    decimal.Decimal `json:"total_monthly"`
	TotalYearly     decimal.Decimal `json:"total_yearly"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []PublicItem    `json:"items"`
}

// Public returns the customer-facing view of e.
func (e Estimate) Public() Public {
	items := make([]PublicItem, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, PublicItem{
			ProductName:   it.ProductName,
			TierName:      it.TierName,
			Quantity:      it.Quantity,
			UsageQuantity: it.UsageQuantity,
			FinalPrice:    it.FinalPrice,
		})
	}
	return Public{
		ReferenceNumber: e.ReferenceNumber,
		CustomerName:    e.CustomerName,
		CustomerCompany: e.CustomerCompany,
		CustomerPhone:   e.CustomerPhone,
		PartnerName:     e.PartnerName,
		Status:          e.Status,
		TotalMonthly:    e.TotalMonthly,
		TotalYearly:     e.TotalYearly,
		CreatedAt:       e.CreatedAt,
		Items:           items,
	}
}

// CreateRequest is the public cart submission.
type CreateRequest struct {
	CustomerName    string        `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string        `json:"customer_email" validate:"required,email,max=254"`
	CustomerCompany *string       `json:"customer_company" validate:"omitempty,max=200"`
	CustomerPhone   *string       `json:"customer_phone" validate:"omitempty,max=40"`
	Notes           *string       `json:"notes" validate:"omitempty,max=2000"`
	Items           []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ItemRequest is one cart line.
type ItemRequest struct {
	ProductID     uuid.UUID        `json:"product_id" validate:"required"`
	TierID        *uuid.UUID       `json:"tier_id"`
	Quantity      int              `json:"quantity" validate:"min=1,max=10000"`
	UsageQuantity *decimal.Decimal `json:"usage_quantity"`
}
