package estimate

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// exportPageSize bounds how many rows each export query pulls.
const exportPageSize = 500

type estimateStore interface {
	Get(ctx context.Context, id uuid.UUID) (Estimate, error)
	GetByReference(ctx context.Context, ref string) (Estimate, error)
	List(ctx context.Context, f ListFilter) ([]Estimate, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service is the read and lifecycle side of estimates once they exist.
type Service struct {
	store  estimateStore
	cache  *cache.JSON
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store estimateStore
	// Cache holds analytics reports, which go stale whenever an estimate changes.
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}
}

// ListParams captures admin listing filters.
type ListParams struct {
	PartnerID *uuid.UUID
	Status    string
	Search    string
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

// ListResult is a page of estimate headers.
type ListResult struct {
	Items      []Estimate
	Pagination common.Pagination
}

// Get returns an estimate with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Estimate, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return Estimate{}, mapStoreError(err, id)
	}
	return e, nil
}

// GetByReference returns the estimate with reference number ref.
func (s *Service) GetByReference(ctx context.Context, ref string) (Estimate, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return Estimate{}, common.NewNotFound("estimate", ref)
	}
	e, err := s.store.GetByReference(ctx, ref)
	if err != nil {
		return Estimate{}, mapStoreError(err, ref)
	}
	return e, nil
}

// List returns a filtered page of estimates, newest first.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	f, err := toFilter(params)
	if err != nil {
		return ListResult{}, err
	}
	f.Limit = params.PerPage
	f.Offset = common.Offset(params.Page, params.PerPage)
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return ListResult{}, common.NewPersistenceError("failed to list estimates", err)
	}
	if items == nil {
		items = []Estimate{}
	}
	return ListResult{Items: items, Pagination: common.NewPagination(params.Page, params.PerPage, total)}, nil
}

// UpdateStatus moves an estimate to status. Any of the four statuses may be
// set from any other.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Estimate, error) {
	st := Status(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return Estimate{}, common.NewValidationError("invalid status", map[string]string{
			"status": "must be one of draft, sent, accepted, expired",
		})
	}
	if err := s.store.UpdateStatus(ctx, id, st); err != nil {
		return Estimate{}, mapStoreError(err, id)
	}
	s.invalidate(ctx)
	s.logger.Info().Str("estimate_id", id.String()).Str("status", string(st)).Msg("estimate status updated")
	return s.Get(ctx, id)
}

// Delete removes an estimate and its items.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err, id)
	}
	s.invalidate(ctx)
	s.logger.Info().Str("estimate_id", id.String()).Msg("estimate deleted")
	return nil
}

var exportHeader = []string{
	"reference_number", "partner", "status", "customer_name", "customer_email", "customer_company",
	"customer_phone", "total_monthly", "total_yearly", "created_at",
}

// ExportCSV writes every estimate matching params as CSV, paging through the
// store so large exports never sit in memory at once. Page fields are ignored.
// begin, when set, runs once the first page has loaded and before anything is
// written, so callers can commit response headers only when the export can
// start. A failure before that point leaves w untouched.
func (s *Service) ExportCSV(ctx context.Context, params ListParams, w io.Writer, begin func()) error {
	f, err := toFilter(params)
	if err != nil {
		return err
	}
	f.Limit = exportPageSize
	page, _, err := s.store.List(ctx, f)
	if err != nil {
		return common.NewPersistenceError("failed to export estimates", err)
	}
	if begin != nil {
		begin()
	}

	out := csv.NewWriter(w)
	if err := out.Write(exportHeader); err != nil {
		return err
	}
	for {
		for _, e := range page {
			if err := out.Write(exportRow(e)); err != nil {
				return err
			}
		}
		if len(page) < exportPageSize {
			break
		}
		f.Offset += exportPageSize
		if page, _, err = s.store.List(ctx, f); err != nil {
			out.Flush()
			return common.NewPersistenceError("failed to export estimates", err)
		}
	}
	out.Flush()
	return out.Error()
}

func exportRow(e Estimate) []string {
	return []string{
		e.ReferenceNumber,
		e.PartnerName,
		string(e.Status),
		csvText(e.CustomerName),
		csvText(e.CustomerEmail),
		csvText(deref(e.CustomerCompany)),
		csvText(deref(e.CustomerPhone)),
		e.TotalMonthly.StringFixed(2),
		e.TotalYearly.StringFixed(2),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// csvText neutralises customer input that a spreadsheet would evaluate as a
// formula by prefixing it with a quote.
func csvText(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

func toFilter(params ListParams) (ListFilter, error) {
	f := ListFilter{PartnerID: params.PartnerID, Search: params.Search, From: params.From, To: params.To}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		st := Status(strings.ToLower(raw))
		if !st.Valid() {
			return ListFilter{}, common.NewValidationError("invalid status filter", map[string]string{
				"status": "must be one of draft, sent, accepted, expired",
			})
		}
		f.Status = &st
	}
	return f, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, cache.PrefixAnalytics); err != nil {
		s.logger.Warn().Err(err).Msg("analytics cache invalidation failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapStoreError(err error, id any) error {
	if errors.Is(err, ErrNotFound) {
		return common.NewNotFound("estimate", id)
	}
	return common.NewPersistenceError("estimate storage failed", err)
}
