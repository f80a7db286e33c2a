// Package analytics reports estimate volume for the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

const (
	defaultRangeDays = 30
	defaultTopLimit  = 5
	maxTopLimit      = 50
)

type reportStore interface {
	StatusTotals(ctx context.Context, from, to time.Time) ([]StatusSummary, error)
	TopPartners(ctx context.Context, from, to time.Time, limit int) ([]PartnerSummary, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSummary, error)
	Daily(ctx context.Context, from, to time.Time) ([]DailySummary, error)
}

// Range is a half-open [From, To) reporting window.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Overview is the dashboard summary.
type Overview struct {
	Range        Range            `json:"range"`
	Estimates    int64            `json:"estimates"`
	TotalMonthly decimal.Decimal  `json:"total_monthly"`
	ByStatus     []StatusSummary  `json:"by_status"`
	TopPartners  []PartnerSummary `json:"top_partners"`
}

// Service provides cached access to estimate aggregates.
type Service struct {
	Store        reportStore
	Cache        *cache.JSON
	DefaultRange int
	Now          func() time.Time
	Logger       zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultWindow returns the window ending now used when the caller gives none.
func (s *Service) DefaultWindow() Range {
	days := s.DefaultRange
	if days <= 0 {
		days = defaultRangeDays
	}
	to := s.now().UTC()
	return Range{From: to.AddDate(0, 0, -days), To: to}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTopLimit
	}
	return min(limit, maxTopLimit)
}

func (rg Range) key(name string, extra ...any) string {
	key := fmt.Sprintf("%s:%d:%d", name, rg.From.Unix(), rg.To.Unix())
	for _, e := range extra {
		key += fmt.Sprintf(":%v", e)
	}
	return cache.KeyAnalytics(key)
}

func (rg Range) validate() error {
	if !rg.From.Before(rg.To) {
		return common.NewValidationError("from must be before to", map[string]string{"from": "before_to"})
	}
	return nil
}

// cached loads key from the cache, falling back to load and storing the result.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var out T
	if hit, err := s.Cache.Get(ctx, key, &out); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("analytics cache read failed")
	} else if hit {
		return out, nil
	}
	out, err := load()
	if err != nil {
		var zero T
		return zero, common.NewPersistenceError("analytics query failed", err)
	}
	if err := s.Cache.Set(ctx, key, out); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
	return out, nil
}

// Overview summarises estimates per status plus the busiest partners.
func (s *Service) Overview(ctx context.Context, rg Range, top int) (Overview, error) {
	if err := rg.validate(); err != nil {
		return Overview{}, err
	}
	top = clampLimit(top)
	return cached(ctx, s, rg.key("overview", top), func() (Overview, error) {
		statuses, err := s.Store.StatusTotals(ctx, rg.From, rg.To)
		if err != nil {
			return Overview{}, err
		}
		partners, err := s.Store.TopPartners(ctx, rg.From, rg.To, top)
		if err != nil {
			return Overview{}, err
		}
		ov := Overview{
			Range:        rg,
			TotalMonthly: decimal.Zero,
			ByStatus:     nonNil(statuses),
			TopPartners:  nonNil(partners),
		}
		for _, st := range statuses {
			ov.Estimates += st.Estimates
			ov.TotalMonthly = ov.TotalMonthly.Add(st.TotalMonthly)
		}
		return ov, nil
	})
}

// TopProducts ranks products by the number of estimate lines quoting them.
func (s *Service) TopProducts(ctx context.Context, rg Range, limit int) ([]ProductSummary, error) {
	if err := rg.validate(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	return cached(ctx, s, rg.key("products", limit), func() ([]ProductSummary, error) {
		rows, err := s.Store.TopProducts(ctx, rg.From, rg.To, limit)
		return nonNil(rows), err
	})
}

// Daily returns the per-day estimate series.
func (s *Service) Daily(ctx context.Context, rg Range) ([]DailySummary, error) {
	if err := rg.validate(); err != nil {
		return nil, err
	}
	return cached(ctx, s, rg.key("daily"), func() ([]DailySummary, error) {
		rows, err := s.Store.Daily(ctx, rg.From, rg.To)
		return nonNil(rows), err
	})
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
