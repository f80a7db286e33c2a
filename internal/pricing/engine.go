// Package pricing turns catalog tiers and an effective markup into line prices.
// All money uses shopspring/decimal and is rounded half-up to cents at every
// money-producing step.
package pricing

import (
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces = 2
	unitPlaces  = 6
)

var monthsPerYear = decimal.NewFromInt(12)

// Round rounds d to cents, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Tier carries the pricing fields of a product tier.
type Tier struct {
	BasePrice             decimal.Decimal
	SellingPrice          *decimal.Decimal
	UsageUnit             *string
	UsageUnitPrice        *decimal.Decimal
	SellingUsageUnitPrice *decimal.Decimal
	UsageIncluded         *decimal.Decimal
}

// Metered reports whether the tier bills usage. Usage fields are ignored when
// no usage unit is configured.
func (t Tier) Metered() bool {
	return t.UsageUnit != nil && *t.UsageUnit != ""
}

// UnitPrice is the monthly flat price: the selling price override when set,
// otherwise the base price with markup applied.
func UnitPrice(t Tier, m Markup) decimal.Decimal {
	if t.SellingPrice != nil {
		return Round(*t.SellingPrice)
	}
	return m.Apply(t.BasePrice)
}

// UsageUnitPrice is the effective price per usage unit: the selling override
// when set, otherwise the base unit price with markup, otherwise zero.
func UsageUnitPrice(t Tier, m Markup) decimal.Decimal {
	if !t.Metered() {
		return decimal.Zero
	}
	if t.SellingUsageUnitPrice != nil {
		return *t.SellingUsageUnitPrice
	}
	if t.UsageUnitPrice != nil {
		return m.ApplyToUnit(*t.UsageUnitPrice)
	}
	return decimal.Zero
}

// BillableUsage is max(0, usage - included).
func BillableUsage(t Tier, usage decimal.Decimal) decimal.Decimal {
	if !t.Metered() {
		return decimal.Zero
	}
	included := decimal.Zero
	if t.UsageIncluded != nil {
		included = *t.UsageIncluded
	}
	billable := usage.Sub(included)
	if billable.IsNegative() {
		return decimal.Zero
	}
	return billable
}

// UsagePrice is the overage charge for usage, rounded to cents.
func UsagePrice(t Tier, m Markup, usage decimal.Decimal) decimal.Decimal {
	billable := BillableUsage(t, usage)
	if billable.IsZero() {
		return decimal.Zero
	}
	return Round(billable.Mul(UsageUnitPrice(t, m)))
}

// Line is the priced result for one cart line.
type Line struct {
	UnitPrice    decimal.Decimal
	UsagePrice   decimal.Decimal
	BasePrice    decimal.Decimal
	MarkupAmount decimal.Decimal
	FinalPrice   decimal.Decimal
}

// PriceLine prices quantity units of t including usage overage. BasePrice is
// the per-unit line price (flat plus usage); FinalPrice multiplies it by
// quantity. MarkupAmount reports how much of FinalPrice came from markup and
// is zero for the parts priced through selling overrides.
func PriceLine(t Tier, m Markup, quantity int, usage *decimal.Decimal) Line {
	qty := decimal.NewFromInt(int64(quantity))
	used := decimal.Zero
	if usage != nil {
		used = *usage
	}

	unit := UnitPrice(t, m)
	usagePrice := UsagePrice(t, m, used)
	base := Round(unit.Add(usagePrice))

	plain := UnitPrice(t, NoMarkup).Add(UsagePrice(t, NoMarkup, used))
	markupPerUnit := base.Sub(plain)
	if markupPerUnit.IsNegative() {
		markupPerUnit = decimal.Zero
	}

	return Line{
		UnitPrice:    unit,
		UsagePrice:   usagePrice,
		BasePrice:    base,
		MarkupAmount: Round(markupPerUnit.Mul(qty)),
		FinalPrice:   Round(base.Mul(qty)),
	}
}

// Totals sums line final prices into monthly and yearly totals. Yearly is
// derived from the rounded monthly total, never rounded independently.
func Totals(finals ...decimal.Decimal) (monthly, yearly decimal.Decimal) {
	monthly = decimal.Zero
	for _, f := range finals {
		monthly = monthly.Add(f)
	}
	monthly = Round(monthly)
	return monthly, monthly.Mul(monthsPerYear)
}
