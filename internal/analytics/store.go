package analytics

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

// StatusSummary aggregates estimates sharing a status.
type StatusSummary struct {
	Status       string          `db:"status" json:"status"`
	Estimates    int64           `db:"estimates" json:"estimates"`
	TotalMonthly decimal.Decimal `db:"total_monthly" json:"total_monthly"`
}

// PartnerSummary ranks a partner by estimate volume.
type PartnerSummary struct {
	PartnerID    uuid.UUID       `db:"partner_id" json:"partner_id"`
	Name         string          `db:"name" json:"name"`
	Slug         string          `db:"slug" json:"slug"`
	Estimates    int64           `db:"estimates" json:"estimates"`
	TotalMonthly decimal.Decimal `db:"total_monthly" json:"total_monthly"`
}

// ProductSummary ranks a product by how often it is quoted.
type ProductSummary struct {
	ProductID    *uuid.UUID      `db:"product_id" json:"product_id"`
	ProductName  string          `db:"product_name" json:"product_name"`
	Lines        int64           `db:"lines" json:"lines"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	Revenue      decimal.Decimal `db:"revenue" json:"revenue"`
	MarkupEarned decimal.Decimal `db:"markup_earned" json:"markup_earned"`
}

// DailySummary is one bucket of the daily estimate series.
type DailySummary struct {
	Day          time.Time       `db:"day" json:"day"`
	Estimates    int64           `db:"estimates" json:"estimates"`
	TotalMonthly decimal.Decimal `db:"total_monthly" json:"total_monthly"`
}

// Store runs aggregate queries over estimates.
type Store struct {
	DB db.Querier
}

func inRange(query sq.SelectBuilder, column string, from, to time.Time) sq.SelectBuilder {
	return query.Where(sq.GtOrEq{column: from}).Where(sq.Lt{column: to})
}

// StatusTotals groups estimates created in [from, to) by status.
func (s Store) StatusTotals(ctx context.Context, from, to time.Time) ([]StatusSummary, error) {
	query := inRange(db.Builder().
		Select("status", "COUNT(*) AS estimates", "COALESCE(SUM(total_monthly), 0) AS total_monthly").
		From("estimates"), "created_at", from, to).
		GroupBy("status").
		OrderBy("status")
	var rows []StatusSummary
	if err := db.Select(ctx, s.DB, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// TopPartners returns the partners with the most estimates in [from, to).
func (s Store) TopPartners(ctx context.Context, from, to time.Time, limit int) ([]PartnerSummary, error) {
	query := inRange(db.Builder().
		Select("p.id AS partner_id", "p.name", "p.slug",
			"COUNT(e.id) AS estimates", "COALESCE(SUM(e.total_monthly), 0) AS total_monthly").
		From("estimates e").
		Join("partners p ON p.id = e.partner_id"), "e.created_at", from, to).
		GroupBy("p.id", "p.name", "p.slug").
		OrderBy("estimates DESC", "total_monthly DESC", "p.name").
		Limit(uint64(limit))
	var rows []PartnerSummary
	if err := db.Select(ctx, s.DB, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// TopProducts returns the most quoted products in [from, to).
func (s Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSummary, error) {
	query := inRange(db.Builder().
		Select("i.product_id", "i.product_name",
			"COUNT(*) AS lines",
			"COALESCE(SUM(i.quantity), 0) AS quantity",
			"COALESCE(SUM(i.final_price), 0) AS revenue",
			"COALESCE(SUM(i.markup_amount), 0) AS markup_earned").
		From("estimate_items i").
		Join("estimates e ON e.id = i.estimate_id"), "e.created_at", from, to).
		GroupBy("i.product_id", "i.product_name").
		OrderBy("lines DESC", "revenue DESC", "i.product_name").
		Limit(uint64(limit))
	var rows []ProductSummary
	if err := db.Select(ctx, s.DB, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// Daily buckets estimates created in [from, to) per UTC day.
func (s Store) Daily(ctx context.Context, from, to time.Time) ([]DailySummary, error) {
	query := inRange(db.Builder().
		Select("date_trunc('day', created_at AT TIME ZONE 'UTC') AS day",
			"COUNT(*) AS estimates", "COALESCE(SUM(total_monthly), 0) AS total_monthly").
		From("estimates"), "created_at", from, to).
		GroupBy("1").
		OrderBy("1")
	var rows []DailySummary
	if err := db.Select(ctx, s.DB, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
