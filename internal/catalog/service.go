package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/markup"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

type catalogStore interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListTiers(ctx context.Context, productID uuid.UUID) ([]Tier, error)
	GetTier(ctx context.Context, id uuid.UUID) (Tier, error)
	CreateTier(ctx context.Context, t Tier) (Tier, error)
	UpdateTier(ctx context.Context, t Tier) (Tier, error)
	DeleteTier(ctx context.Context, productID, id uuid.UUID) error

	ListPublic(ctx context.Context) (PublicRows, error)
}

// Service manages the catalog and assembles partner-priced public views.
type Service struct {
	store  catalogStore
	rules  markup.RuleLister
	cache  *cache.JSON
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  catalogStore
	Rules  markup.RuleLister
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, rules: cfg.Rules, cache: cfg.Cache, logger: cfg.Logger}
}

// CategoryInput is the admin payload for a category.
type CategoryInput struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Slug         string  `json:"slug" validate:"required,max=63"`
	Description  *string `json:"description"`
	DisplayOrder int     `json:"display_order"`
	IsActive     *bool   `json:"is_active"`
}

// ProductInput is the admin payload for a product.
type ProductInput struct {
	CategoryID   uuid.UUID `json:"category_id" validate:"required"`
	Name         string    `json:"name" validate:"required,max=160"`
	Slug         string    `json:"slug" validate:"required,max=63"`
	Description  *string   `json:"description"`
	PricingModel string    `json:"pricing_model" validate:"required,oneof=tier usage tier_plus_usage custom"`
	DisplayOrder int       `json:"display_order"`
	IsActive     *bool     `json:"is_active"`
}

// TierInput is the admin payload for a tier.
type TierInput struct {
	Name                  string           `json:"name" validate:"required,max=120"`
	Slug                  string           `json:"slug" validate:"required,max=63"`
	BasePrice             decimal.Decimal  `json:"base_price"`
	SellingPrice          *decimal.Decimal `json:"selling_price"`
	UsageUnit             *string          `json:"usage_unit" validate:"omitempty,max=40"`
	UsageUnitPrice        *decimal.Decimal `json:"usage_unit_price"`
	SellingUsageUnitPrice *decimal.Decimal `json:"selling_usage_unit_price"`
	UsageIncluded         *decimal.Decimal `json:"usage_included"`
	DisplayOrder          int              `json:"display_order"`
	IsActive              *bool            `json:"is_active"`
}

// ProductListParams captures admin product listing filters.
type ProductListParams struct {
	CategoryID *uuid.UUID
	Search     string
	Active     *bool
	Page       int
	PerPage    int
}

// ProductListResult is a page of products.
type ProductListResult struct {
	Items      []Product
	Pagination common.Pagination
}

// ProductDetail is a product with all of its tiers.
type ProductDetail struct {
	Product
	Tiers []Tier `json:"tiers"`
}

// ListCategories returns every category for the admin panel.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	items, err := s.store.ListCategories(ctx, false)
	if err != nil {
		return nil, common.NewPersistenceError("failed to list categories", err)
	}
	if items == nil {
		items = []Category{}
	}
	return items, nil
}

// CreateCategory validates and stores a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	c, err := categoryFromInput(in, Category{IsActive: true})
	if err != nil {
		return Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, mapStoreError(err, "category", nil)
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateCategory replaces a category.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (Category, error) {
	current, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, mapStoreError(err, "category", id)
	}
	next, err := categoryFromInput(in, current)
	if err != nil {
		return Category{}, err
	}
	updated, err := s.store.UpdateCategory(ctx, next)
	if err != nil {
		return Category{}, mapStoreError(err, "category", id)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteCategory removes a category without products.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return mapStoreError(err, "category", id)
	}
	s.invalidate(ctx)
	return nil
}

// ListProducts returns a filtered page of products.
func (s *Service) ListProducts(ctx context.Context, params ProductListParams) (ProductListResult, error) {
	items, total, err := s.store.ListProducts(ctx, ProductFilter{
		CategoryID: params.CategoryID,
		Search:     params.Search,
		Active:     params.Active,
		Limit:      params.PerPage,
		Offset:     common.Offset(params.Page, params.PerPage),
	})
	if err != nil {
		return ProductListResult{}, common.NewPersistenceError("failed to list products", err)
	}
	if items == nil {
		items = []Product{}
	}
	return ProductListResult{Items: items, Pagination: common.NewPagination(params.Page, params.PerPage, total)}, nil
}

// GetProduct returns a product with its tiers.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (ProductDetail, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ProductDetail{}, mapStoreError(err, "product", id)
	}
	tiers, err := s.store.ListTiers(ctx, id)
	if err != nil {
		return ProductDetail{}, common.NewPersistenceError("failed to list tiers", err)
	}
	if tiers == nil {
		tiers = []Tier{}
	}
	return ProductDetail{Product: p, Tiers: tiers}, nil
}

// CreateProduct validates and stores a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p, err := productFromInput(in, Product{IsActive: true})
	if err != nil {
		return Product{}, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, mapStoreError(err, "product", nil)
	}
	s.logger.Info().Str("product_id", created.ID.String()).Str("slug", created.Slug).Msg("product created")
	s.invalidate(ctx)
	return created, nil
}

// UpdateProduct replaces a product.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, mapStoreError(err, "product", id)
	}
	next, err := productFromInput(in, current)
	if err != nil {
		return Product{}, err
	}
	updated, err := s.store.UpdateProduct(ctx, next)
	if err != nil {
		return Product{}, mapStoreError(err, "product", id)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteProduct removes a product and its tiers.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return mapStoreError(err, "product", id)
	}
	s.invalidate(ctx)
	return nil
}

// CreateTier validates and stores a tier under productID.
func (s *Service) CreateTier(ctx context.Context, productID uuid.UUID, in TierInput) (Tier, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return Tier{}, mapStoreError(err, "product", productID)
	}
	t, err := tierFromInput(in, Tier{ProductID: productID, IsActive: true})
	if err != nil {
		return Tier{}, err
	}
	created, err := s.store.CreateTier(ctx, t)
	if err != nil {
		return Tier{}, mapStoreError(err, "tier", nil)
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateTier replaces a tier of productID.
func (s *Service) UpdateTier(ctx context.Context, productID, id uuid.UUID, in TierInput) (Tier, error) {
	current, err := s.store.GetTier(ctx, id)
	if err != nil || current.ProductID != productID {
		return Tier{}, mapStoreError(orNotFound(err), "tier", id)
	}
	next, err := tierFromInput(in, current)
	if err != nil {
		return Tier{}, err
	}
	updated, err := s.store.UpdateTier(ctx, next)
	if err != nil {
		return Tier{}, mapStoreError(err, "tier", id)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteTier removes a tier of productID.
func (s *Service) DeleteTier(ctx context.Context, productID, id uuid.UUID) error {
	if err := s.store.DeleteTier(ctx, productID, id); err != nil {
		return mapStoreError(err, "tier", id)
	}
	s.invalidate(ctx)
	return nil
}

// PublicCatalog returns the active catalog priced for p. Only final prices
// leave this function; base prices, selling overrides and markup stay internal.
func (s *Service) PublicCatalog(ctx context.Context, p partner.Partner) ([]PublicCategory, error) {
	key := cache.KeyPartnerCatalog(p.Slug)
	var cached []PublicCategory
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("partner", p.Slug).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}

	rows, err := s.store.ListPublic(ctx)
	if err != nil {
		return nil, common.NewPersistenceError("failed to load catalog", err)
	}
	productIDs := make([]uuid.UUID, 0, len(rows.Products))
	for _, prod := range rows.Products {
		productIDs = append(productIDs, prod.ID)
	}
	snap, err := markup.LoadSnapshot(ctx, s.rules, p.ID, productIDs, p.DefaultMarkup())
	if err != nil {
		return nil, common.NewPersistenceError("failed to load markup rules", err)
	}

	out := BuildPublic(rows, snap)
	if err := s.cache.Set(ctx, key, out); err != nil {
		s.logger.Warn().Err(err).Str("partner", p.Slug).Msg("catalog cache write failed")
	}
	return out, nil
}

// BuildPublic prices rows through snap. Categories without products are left out.
func BuildPublic(rows PublicRows, snap *markup.Snapshot) []PublicCategory {
	tiersByProduct := make(map[uuid.UUID][]PublicTier)
	for _, t := range rows.Tiers {
		tierID := t.ID
		m := snap.Resolve(t.ProductID, &tierID).Markup()
		pt := t.PricingTier()
		public := PublicTier{
			ID:    t.ID,
			Name:  t.Name,
			Slug:  t.Slug,
			Price: pricing.UnitPrice(pt, m),
		}
		if pt.Metered() {
			unitPrice := pricing.UsageUnitPrice(pt, m)
			public.UsageUnit = t.UsageUnit
			public.UsageUnitPrice = &unitPrice
			public.UsageIncluded = t.UsageIncluded
		}
		tiersByProduct[t.ProductID] = append(tiersByProduct[t.ProductID], public)
	}

	productsByCategory := make(map[uuid.UUID][]PublicProduct)
	for _, prod := range rows.Products {
		tiers := tiersByProduct[prod.ID]
		if tiers == nil {
			tiers = []PublicTier{}
		}
		productsByCategory[prod.CategoryID] = append(productsByCategory[prod.CategoryID], PublicProduct{
			ID:           prod.ID,
			Name:         prod.Name,
			Slug:         prod.Slug,
			Description:  prod.Description,
			PricingModel: prod.PricingModel,
			Tiers:        tiers,
		})
	}

	out := make([]PublicCategory, 0, len(rows.Categories))
	for _, c := range rows.Categories {
		products := productsByCategory[c.ID]
		if len(products) == 0 {
			continue
		}
		out = append(out, PublicCategory{
			ID:          c.ID,
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			Products:    products,
		})
	}
	return out
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, cache.PrefixCatalog); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func categoryFromInput(in CategoryInput, base Category) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = common.NormalizeSlug(in.Slug)
	if err := common.Validate(in); err != nil {
		return Category{}, err
	}
	if !common.IsSlug(in.Slug) {
		return Category{}, slugError()
	}
	base.Name = in.Name
	base.Slug = in.Slug
	base.Description = trimmed(in.Description)
	base.DisplayOrder = in.DisplayOrder
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

func productFromInput(in ProductInput, base Product) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = common.NormalizeSlug(in.Slug)
	if err := common.Validate(in); err != nil {
		return Product{}, err
	}
	if !common.IsSlug(in.Slug) {
		return Product{}, slugError()
	}
	base.CategoryID = in.CategoryID
	base.Name = in.Name
	base.Slug = in.Slug
	base.Description = trimmed(in.Description)
	base.PricingModel = PricingModel(in.PricingModel)
	base.DisplayOrder = in.DisplayOrder
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

// tierFromInput validates money fields and enforces the usage invariant:
// without a usage unit the usage price, override and allotment are cleared.
func tierFromInput(in TierInput, base Tier) (Tier, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = common.NormalizeSlug(in.Slug)
	if err := common.Validate(in); err != nil {
		return Tier{}, err
	}
	details := map[string]string{}
	if !common.IsSlug(in.Slug) {
		details["slug"] = "must contain only lowercase letters, digits and single hyphens"
	}
	checkNonNegative(details, "base_price", &in.BasePrice)
	checkNonNegative(details, "selling_price", in.SellingPrice)

	unit := trimmed(in.UsageUnit)
	if unit == nil {
		in.UsageUnitPrice, in.SellingUsageUnitPrice, in.UsageIncluded = nil, nil, nil
	}
	checkNonNegative(details, "usage_unit_price", in.UsageUnitPrice)
	checkNonNegative(details, "selling_usage_unit_price", in.SellingUsageUnitPrice)
	checkNonNegative(details, "usage_included", in.UsageIncluded)
	if len(details) > 0 {
		return Tier{}, common.NewValidationError("validation failed", details)
	}

	base.Name = in.Name
	base.Slug = in.Slug
	base.BasePrice = in.BasePrice
	base.SellingPrice = in.SellingPrice
	base.UsageUnit = unit
	base.UsageUnitPrice = in.UsageUnitPrice
	base.SellingUsageUnitPrice = in.SellingUsageUnitPrice
	base.UsageIncluded = in.UsageIncluded
	base.DisplayOrder = in.DisplayOrder
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

func checkNonNegative(details map[string]string, field string, v *decimal.Decimal) {
	if v != nil && v.IsNegative() {
		details[field] = "must be at least 0"
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func slugError() error {
	return common.NewValidationError("validation failed", map[string]string{
		"slug": "must contain only lowercase letters, digits and single hyphens",
	})
}

func orNotFound(err error) error {
	if err == nil {
		return ErrNotFound
	}
	return err
}

func mapStoreError(err error, entity string, id any) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewNotFound(entity, id)
	case errors.Is(err, ErrSlugTaken):
		return common.NewConflict(entity+" slug already in use", err)
	case errors.Is(err, ErrInUse):
		return common.NewConflict(entity+" is still in use", err)
	case errors.Is(err, ErrUnknownReference):
		return common.NewValidationError(ErrUnknownReference.Error(), nil)
	}
	return common.NewPersistenceError(entity+" storage failed", err)
}
