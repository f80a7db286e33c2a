package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

var (
	// ErrNotFound is returned when a category, product or tier does not exist.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrSlugTaken is returned when a slug is already used in its scope.
	ErrSlugTaken = errors.New("slug already in use")
	// ErrInUse is returned when deleting a category that still has products.
	ErrInUse = errors.New("catalog entry is still referenced")
	// ErrUnknownReference is returned when a parent category or product does not exist.
	ErrUnknownReference = errors.New("referenced catalog entry does not exist")
)

var (
	categoryColumns = []string{"id", "name", "slug", "description", "display_order", "is_active", "created_at", "updated_at"}
	productColumns  = []string{"id", "category_id", "name", "slug", "description", "pricing_model", "display_order", "is_active", "created_at", "updated_at"}
	tierColumns     = []string{
		"id", "product_id", "name", "slug", "base_price", "selling_price", "usage_unit", "usage_unit_price",
		"selling_usage_unit_price", "usage_included", "display_order", "is_active", "created_at", "updated_at",
	}
)

func returning(cols []string) string {
	return "RETURNING " + strings.Join(cols, ", ")
}

// ProductFilter narrows admin product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	Active     *bool
	Limit      int
	Offset     uint64
}

// Store persists the catalog in Postgres.
type Store struct {
	DB db.Querier
}

// ListCategories returns categories ordered for display.
func (s Store) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	query := db.Builder().Select(categoryColumns...).From("categories").OrderBy("display_order", "name")
	if activeOnly {
		query = query.Where("is_active")
	}
	var out []Category
	err := db.Select(ctx, s.DB, &out, query)
	return out, err
}

// GetCategory loads a category by id.
func (s Store) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	var c Category
	err := db.Get(ctx, s.DB, &c, db.Builder().Select(categoryColumns...).From("categories").Where("id = ?", id))
	return c, classify(err)
}

// CreateCategory inserts c.
func (s Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	var out Category
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("categories").
		Columns("name", "slug", "description", "display_order", "is_active").
		Values(c.Name, c.Slug, c.Description, c.DisplayOrder, c.IsActive).
		Suffix(returning(categoryColumns)))
	return out, classify(err)
}

// UpdateCategory replaces the mutable fields of c.
func (s Store) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	var out Category
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Update("categories").
		SetMap(map[string]any{
			"name":          c.Name,
			"slug":          c.Slug,
			"description":   c.Description,
			"display_order": c.DisplayOrder,
			"is_active":     c.IsActive,
			"updated_at":    time.Now().UTC(),
		}).
		Where("id = ?", c.ID).
		Suffix(returning(categoryColumns)))
	return out, classify(err)
}

// DeleteCategory removes an empty category.
func (s Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, "categories", id)
}

func (s Store) filteredProducts(query sq.SelectBuilder, f ProductFilter) sq.SelectBuilder {
	if f.CategoryID != nil {
		query = query.Where("category_id = ?", *f.CategoryID)
	}
	if f.Active != nil {
		query = query.Where("is_active = ?", *f.Active)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		query = query.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"slug": like}})
	}
	return query
}

// ListProducts returns a filtered page of products and the total match count.
func (s Store) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	total, err := db.Count(ctx, s.DB, s.filteredProducts(db.Builder().Select("COUNT(*)").From("products"), f))
	if err != nil {
		return nil, 0, err
	}
	query := s.filteredProducts(db.Builder().Select(productColumns...).From("products"), f).
		OrderBy("display_order", "name")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit)).Offset(f.Offset)
	}
	var out []Product
	if err := db.Select(ctx, s.DB, &out, query); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetProduct loads a product by id.
func (s Store) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := db.Get(ctx, s.DB, &p, db.Builder().Select(productColumns...).From("products").Where("id = ?", id))
	return p, classify(err)
}

// CreateProduct inserts p.
func (s Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("products").
		Columns("category_id", "name", "slug", "description", "pricing_model", "display_order", "is_active").
		Values(p.CategoryID, p.Name, p.Slug, p.Description, p.PricingModel, p.DisplayOrder, p.IsActive).
		Suffix(returning(productColumns)))
	return out, classify(err)
}

// UpdateProduct replaces the mutable fields of p.
func (s Store) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Update("products").
		SetMap(map[string]any{
			"category_id":   p.CategoryID,
			"name":          p.Name,
			"slug":          p.Slug,
			"description":   p.Description,
			"pricing_model": p.PricingModel,
			"display_order": p.DisplayOrder,
			"is_active":     p.IsActive,
			"updated_at":    time.Now().UTC(),
		}).
		Where("id = ?", p.ID).
		Suffix(returning(productColumns)))
	return out, classify(err)
}

// DeleteProduct removes a product and its tiers. Estimate lines keep their
// snapshot names.
func (s Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, "products", id)
}

// ListTiers returns every tier of a product.
func (s Store) ListTiers(ctx context.Context, productID uuid.UUID) ([]Tier, error) {
	var out []Tier
	err := db.Select(ctx, s.DB, &out, db.Builder().
		Select(tierColumns...).
		From("product_tiers").
		Where("product_id = ?", productID).
		OrderBy("display_order", "name"))
	return out, err
}

// GetTier loads a tier by id.
func (s Store) GetTier(ctx context.Context, id uuid.UUID) (Tier, error) {
	var t Tier
	err := db.Get(ctx, s.DB, &t, db.Builder().Select(tierColumns...).From("product_tiers").Where("id = ?", id))
	return t, classify(err)
}

// CreateTier inserts t.
func (s Store) CreateTier(ctx context.Context, t Tier) (Tier, error) {
	var out Tier
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("product_tiers").
		Columns("product_id", "name", "slug", "base_price", "selling_price", "usage_unit", "usage_unit_price",
			"selling_usage_unit_price", "usage_included", "display_order", "is_active").
		Values(t.ProductID, t.Name, t.Slug, t.BasePrice, t.SellingPrice, t.UsageUnit, t.UsageUnitPrice,
			t.SellingUsageUnitPrice, t.UsageIncluded, t.DisplayOrder, t.IsActive).
		Suffix(returning(tierColumns)))
	return out, classify(err)
}

// UpdateTier replaces the mutable fields of t. The owning product never changes.
func (s Store) UpdateTier(ctx context.Context, t Tier) (Tier, error) {
	var out Tier
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Update("product_tiers").
		SetMap(map[string]any{
			"name":                     t.Name,
			"slug":                     t.Slug,
			"base_price":               t.BasePrice,
			"selling_price":            t.SellingPrice,
			"usage_unit":               t.UsageUnit,
			"usage_unit_price":         t.UsageUnitPrice,
			"selling_usage_unit_price": t.SellingUsageUnitPrice,
			"usage_included":           t.UsageIncluded,
			"display_order":            t.DisplayOrder,
			"is_active":                t.IsActive,
			"updated_at":               time.Now().UTC(),
		}).
		Where("id = ? AND product_id = ?", t.ID, t.ProductID).
		Suffix(returning(tierColumns)))
	return out, classify(err)
}

// DeleteTier removes a tier of productID.
func (s Store) DeleteTier(ctx context.Context, productID, id uuid.UUID) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().Delete("product_tiers").Where("id = ? AND product_id = ?", id, productID))
	if err != nil {
		return classifyDelete(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindProductsByIDs returns the active products among ids keyed by id.
// Missing or inactive ids are absent from the map.
func (s Store) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := make(map[uuid.UUID]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Product
	if err := db.Select(ctx, s.DB, &rows, db.Builder().
		Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": ids}).
		Where("is_active")); err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// FindTiersByIDs returns the active tiers among ids keyed by id.
func (s Store) FindTiersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Tier, error) {
	out := make(map[uuid.UUID]Tier, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Tier
	if err := db.Select(ctx, s.DB, &rows, db.Builder().
		Select(tierColumns...).
		From("product_tiers").
		Where(sq.Eq{"id": ids}).
		Where("is_active")); err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.ID] = t
	}
	return out, nil
}

// ProductIDForTier returns the product owning tierID.
func (s Store) ProductIDForTier(ctx context.Context, tierID uuid.UUID) (uuid.UUID, bool, error) {
	var productID uuid.UUID
	err := db.Get(ctx, s.DB, &productID, db.Builder().Select("product_id").From("product_tiers").Where("id = ?", tierID))
	if db.IsNotFound(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return productID, true, nil
}

// PublicRows is the raw active catalog: active categories, their active
// products and those products' active tiers, each in display order.
type PublicRows struct {
	Categories []Category
	Products   []Product
	Tiers      []Tier
}

// ListPublic loads the active catalog in three queries.
func (s Store) ListPublic(ctx context.Context) (PublicRows, error) {
	var rows PublicRows
	if err := db.Select(ctx, s.DB, &rows.Categories, db.Builder().
		Select(categoryColumns...).
		From("categories").
		Where("is_active").
		OrderBy("display_order", "name")); err != nil {
		return PublicRows{}, err
	}
	if err := db.Select(ctx, s.DB, &rows.Products, db.Builder().
		Select(prefixed("p", productColumns)...).
		From("products p").
		Join("categories c ON c.id = p.category_id").
		Where("p.is_active AND c.is_active").
		OrderBy("p.display_order", "p.name")); err != nil {
		return PublicRows{}, err
	}
	if err := db.Select(ctx, s.DB, &rows.Tiers, db.Builder().
		Select(prefixed("t", tierColumns)...).
		From("product_tiers t").
		Join("products p ON p.id = t.product_id").
		Where("t.is_active AND p.is_active").
		OrderBy("t.display_order", "t.name")); err != nil {
		return PublicRows{}, err
	}
	return rows, nil
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func (s Store) delete(ctx context.Context, table string, id uuid.UUID) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().Delete(table).Where("id = ?", id))
	if err != nil {
		return classifyDelete(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err, ""):
		return ErrSlugTaken
	case db.IsForeignKeyViolation(err):
		return ErrUnknownReference
	}
	return err
}

// classifyDelete maps a foreign key failure on DELETE to ErrInUse: the row is
// still referenced rather than referencing something missing.
func classifyDelete(err error) error {
	if db.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	return classify(err)
}
