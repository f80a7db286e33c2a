package partner

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	defaultPrimaryColor   = "#1F2937"
	defaultSecondaryColor = "#F97316"
)

type partnerStore interface {
	List(ctx context.Context, f ListFilter) ([]Partner, int64, error)
	Get(ctx context.Context, id uuid.UUID) (Partner, error)
	FindBySlug(ctx context.Context, slug string) (Partner, error)
	Create(ctx context.Context, p Partner) (Partner, error)
	Update(ctx context.Context, p Partner) (Partner, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service manages partners and serves slug lookups for the public pages.
type Service struct {
	store  partnerStore
	cache  *cache.JSON
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  partnerStore
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}
}

// Input is the admin payload for creating or replacing a partner.
type Input struct {
	Name               string          `json:"name" validate:"required,max=120"`
	Slug               string          `json:"slug" validate:"required,max=63"`
	LogoURL            *string         `json:"logo_url" validate:"omitempty,url"`
	PrimaryColor       string          `json:"primary_color"`
	SecondaryColor     string          `json:"secondary_color"`
	ContactEmail       *string         `json:"contact_email" validate:"omitempty,email"`
	ContactPhone       *string         `json:"contact_phone" validate:"omitempty,max=40"`
	DefaultMarkupType  string          `json:"default_markup_type" validate:"required,oneof=percentage fixed"`
	DefaultMarkupValue decimal.Decimal `json:"default_markup_value"`
	IsActive           *bool           `json:"is_active"`
}

// ListParams captures admin listing filters.
type ListParams struct {
	Search  string
	Active  *bool
	Page    int
	PerPage int
}

// ListResult is a page of partners.
type ListResult struct {
	Items      []Partner
	Pagination common.Pagination
}

// List returns a filtered page of partners.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	items, total, err := s.store.List(ctx, ListFilter{
		Search: params.Search,
		Active: params.Active,
		Limit:  params.PerPage,
		Offset: common.Offset(params.Page, params.PerPage),
	})
	if err != nil {
		return ListResult{}, common.NewPersistenceError("failed to list partners", err)
	}
	if items == nil {
		items = []Partner{}
	}
	return ListResult{Items: items, Pagination: common.NewPagination(params.Page, params.PerPage, total)}, nil
}

// Get loads a partner by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Partner, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Partner{}, mapStoreError(err, id)
	}
	return p, nil
}

// DefaultMarkup returns the partner's default markup.
func (s *Service) DefaultMarkup(ctx context.Context, id uuid.UUID) (pricing.Markup, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Markup{}, err
	}
	return p.DefaultMarkup(), nil
}

// BySlug returns the active partner with the given slug, served from cache when possible.
func (s *Service) BySlug(ctx context.Context, slug string) (Partner, error) {
	slug = common.NormalizeSlug(slug)
	if !common.IsSlug(slug) {
		return Partner{}, common.NewNotFound("partner", slug)
	}
	var p Partner
	if ok, err := s.cache.Get(ctx, cache.KeyPartner(slug), &p); err != nil {
		s.logger.Warn().Err(err).Str("slug", slug).Msg("partner cache read failed")
	} else if ok {
		return p, nil
	}

	p, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return Partner{}, mapStoreError(err, slug)
	}
	if !p.IsActive {
		return Partner{}, common.NewNotFound("partner", slug)
	}
	if err := s.cache.Set(ctx, cache.KeyPartner(slug), p); err != nil {
		s.logger.Warn().Err(err).Str("slug", slug).Msg("partner cache write failed")
	}
	return p, nil
}

// Create validates and stores a partner.
func (s *Service) Create(ctx context.Context, in Input) (Partner, error) {
	p, err := s.fromInput(in, Partner{IsActive: true})
	if err != nil {
		return Partner{}, err
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return Partner{}, mapStoreError(err, nil)
	}
	s.logger.Info().Str("partner_id", created.ID.String()).Str("slug", created.Slug).Msg("partner created")
	return created, nil
}

// Update replaces a partner's settings. The direct partner keeps its slug and stays active.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Partner, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Partner{}, mapStoreError(err, id)
	}
	next, err := s.fromInput(in, current)
	if err != nil {
		return Partner{}, err
	}
	if current.IsDirect() && (next.Slug != DirectSlug || !next.IsActive) {
		return Partner{}, common.NewConflict("the direct partner cannot be renamed or deactivated", nil)
	}
	next.ID = id
	updated, err := s.store.Update(ctx, next)
	if err != nil {
		return Partner{}, mapStoreError(err, id)
	}
	s.invalidate(ctx, current.Slug, updated.Slug)
	return updated, nil
}

// Delete removes a partner. The direct partner and partners with estimates are protected.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return mapStoreError(err, id)
	}
	if current.IsDirect() {
		return common.NewConflict("the direct partner cannot be deleted", nil)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err, id)
	}
	s.invalidate(ctx, current.Slug)
	s.logger.Info().Str("partner_id", id.String()).Msg("partner deleted")
	return nil
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs)*2)
	for _, slug := range slugs {
		keys = append(keys, cache.KeyPartner(slug), cache.KeyPartnerCatalog(slug))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Strs("slugs", slugs).Msg("partner cache invalidation failed")
	}
}

func (s *Service) fromInput(in Input, base Partner) (Partner, error) {
	in.Slug = common.NormalizeSlug(in.Slug)
	in.Name = strings.TrimSpace(in.Name)
	if err := common.Validate(in); err != nil {
		return Partner{}, err
	}
	details := map[string]string{}
	if !common.IsSlug(in.Slug) {
		details["slug"] = "must contain only lowercase letters, digits and single hyphens"
	}
	if in.DefaultMarkupValue.IsNegative() {
		details["default_markup_value"] = "must be at least 0"
	}
	primary := colorOrDefault(in.PrimaryColor, defaultPrimaryColor)
	secondary := colorOrDefault(in.SecondaryColor, defaultSecondaryColor)
	if !colorPattern.MatchString(primary) {
		details["primary_color"] = "must be a #RRGGBB color"
	}
	if !colorPattern.MatchString(secondary) {
		details["secondary_color"] = "must be a #RRGGBB color"
	}
	if len(details) > 0 {
		return Partner{}, common.NewValidationError("validation failed", details)
	}

	base.Name = in.Name
	base.Slug = in.Slug
	base.LogoURL = in.LogoURL
	base.PrimaryColor = strings.ToUpper(primary)
	base.SecondaryColor = strings.ToUpper(secondary)
	base.ContactEmail = in.ContactEmail
	base.ContactPhone = in.ContactPhone
	base.DefaultMarkupType = pricing.MarkupType(in.DefaultMarkupType)
	base.DefaultMarkupValue = in.DefaultMarkupValue
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

func colorOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func mapStoreError(err error, id any) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewNotFound("partner", id)
	case errors.Is(err, ErrSlugTaken):
		return common.NewConflict(ErrSlugTaken.Error(), err)
	case errors.Is(err, ErrInUse):
		return common.NewConflict("partner has estimates and cannot be deleted", err)
	}
	return common.NewPersistenceError("partner storage failed", err)
}
