package partner

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

const slugConstraint = "partners_slug_key"

var (
	// ErrNotFound is returned when a partner does not exist.
	ErrNotFound = errors.New("partner not found")
	// ErrSlugTaken is returned when another partner already uses the slug.
	ErrSlugTaken = errors.New("partner slug already in use")
	// ErrInUse is returned when a partner still owns estimates.
	ErrInUse = errors.New("partner still has estimates")
)

var columns = []string{
	"id", "name", "slug", "logo_url", "primary_color", "secondary_color",
	"contact_email", "contact_phone", "default_markup_type", "default_markup_value",
	"is_active", "created_at", "updated_at",
}

var returning = "RETURNING " + strings.Join(columns, ", ")

// ListFilter narrows partner listings.
type ListFilter struct {
	Search string
	Active *bool
	Limit  int
	Offset uint64
}

// Store persists partners in Postgres.
type Store struct {
	DB db.Querier
}

func (s Store) filtered(query sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		query = query.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"slug": like}})
	}
	if f.Active != nil {
		query = query.Where(sq.Eq{"is_active": *f.Active})
	}
	return query
}

// List returns a page of partners and the total matching count.
func (s Store) List(ctx context.Context, f ListFilter) ([]Partner, int64, error) {
	total, err := db.Count(ctx, s.DB, s.filtered(db.Builder().Select("COUNT(*)").From("partners"), f))
	if err != nil {
		return nil, 0, err
	}
	query := s.filtered(db.Builder().Select(columns...).From("partners"), f).OrderBy("name")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit)).Offset(f.Offset)
	}
	var partners []Partner
	if err := db.Select(ctx, s.DB, &partners, query); err != nil {
		return nil, 0, err
	}
	return partners, total, nil
}

// Get loads a partner by id.
func (s Store) Get(ctx context.Context, id uuid.UUID) (Partner, error) {
	var p Partner
	err := db.Get(ctx, s.DB, &p, db.Builder().Select(columns...).From("partners").Where("id = ?", id))
	if db.IsNotFound(err) {
		return Partner{}, ErrNotFound
	}
	return p, err
}

// FindBySlug loads a partner by slug, returning ErrNotFound when absent.
func (s Store) FindBySlug(ctx context.Context, slug string) (Partner, error) {
	var p Partner
	err := db.Get(ctx, s.DB, &p, db.Builder().Select(columns...).From("partners").Where("slug = ?", slug))
	if db.IsNotFound(err) {
		return Partner{}, ErrNotFound
	}
	return p, err
}

// Create inserts p and returns the stored row.
func (s Store) Create(ctx context.Context, p Partner) (Partner, error) {
	var out Partner
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("partners").
		Columns("name", "slug", "logo_url", "primary_color", "secondary_color", "contact_email",
			"contact_phone", "default_markup_type", "default_markup_value", "is_active").
		Values(p.Name, p.Slug, p.LogoURL, p.PrimaryColor, p.SecondaryColor, p.ContactEmail,
			p.ContactPhone, p.DefaultMarkupType, p.DefaultMarkupValue, p.IsActive).
		Suffix(returning))
	return out, classify(err)
}

// Update overwrites the mutable fields of p.
func (s Store) Update(ctx context.Context, p Partner) (Partner, error) {
	var out Partner
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Update("partners").
		SetMap(map[string]any{
			"name":                 p.Name,
			"slug":                 p.Slug,
			"logo_url":             p.LogoURL,
			"primary_color":        p.PrimaryColor,
			"secondary_color":      p.SecondaryColor,
			"contact_email":        p.ContactEmail,
			"contact_phone":        p.ContactPhone,
			"default_markup_type":  p.DefaultMarkupType,
			"default_markup_value": p.DefaultMarkupValue,
			"is_active":            p.IsActive,
			"updated_at":           time.Now().UTC(),
		}).
		Where("id = ?", p.ID).
		Suffix(returning))
	if db.IsNotFound(err) {
		return Partner{}, ErrNotFound
	}
	return out, classify(err)
}

// Delete removes a partner. Partners referenced by estimates cannot be removed.
func (s Store) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().Delete("partners").Where("id = ?", id))
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureDirect inserts the protected direct partner unless it already exists.
// It reports whether a row was created.
func (s Store) EnsureDirect(ctx context.Context) (bool, error) {
	n, err := db.Exec(ctx, s.DB, db.Builder().
		Insert("partners").
		Columns("name", "slug", "default_markup_type", "default_markup_value", "is_active").
		Values("Direct", DirectSlug, "percentage", 0, true).
		Suffix("ON CONFLICT (slug) DO NOTHING"))
	return n > 0, err
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, slugConstraint):
		return ErrSlugTaken
	case db.IsForeignKeyViolation(err):
		return ErrInUse
	}
	return err
}
