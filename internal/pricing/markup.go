package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MarkupType selects how a markup value is applied to a price.
type MarkupType string

const (
	// MarkupPercentage multiplies the price by (1 + value/100).
	MarkupPercentage MarkupType = "percentage"
	// MarkupFixed adds value to the flat monthly price.
	MarkupFixed MarkupType = "fixed"
)

// Valid reports whether t is a known markup type.
func (t MarkupType) Valid() bool {
	return t == MarkupPercentage || t == MarkupFixed
}

// ParseMarkupType validates raw and returns the matching MarkupType.
func ParseMarkupType(raw string) (MarkupType, error) {
	t := MarkupType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown markup type %q", raw)
	}
	return t, nil
}

// Markup is an effective markup ready to be applied.
type Markup struct {
	Type  MarkupType      `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// NoMarkup leaves prices untouched.
var NoMarkup = Markup{Type: MarkupPercentage, Value: decimal.Zero}

// Apply returns base with the markup applied, rounded to cents.
func (m Markup) Apply(base decimal.Decimal) decimal.Decimal {
	switch m.Type {
	case MarkupFixed:
		return Round(base.Add(m.Value))
	default:
		return Round(base.Mul(percentFactor(m.Value)))
	}
}

// ApplyToUnit applies the markup to a metered unit price. Fixed markups are a
// flat monthly amount and leave unit prices alone; unit prices keep six
// decimal places because they are typically fractions of a cent.
func (m Markup) ApplyToUnit(unit decimal.Decimal) decimal.Decimal {
	if m.Type == MarkupFixed {
		return unit
	}
	return unit.Mul(percentFactor(m.Value)).Round(unitPlaces)
}

func percentFactor(pct decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(pct.Div(decimal.NewFromInt(100)))
}
