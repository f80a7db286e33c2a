package estimate

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

const referenceConstraint = "estimates_reference_number_key"

var (
	// ErrNotFound is returned when an estimate does not exist.
	ErrNotFound = errors.New("estimate not found")
	// ErrUnknownPartner is returned when the header references a missing partner.
	ErrUnknownPartner = errors.New("estimate references an unknown partner")
)

var (
	headerColumns = []string{
		"id", "partner_id", "reference_number", "customer_name", "customer_email", "customer_company",
		"customer_phone", "notes", "status", "total_monthly", "total_yearly", "created_at", "updated_at",
	}
	itemColumns = []string{
		"id", "estimate_id", "product_id", "tier_id", "product_name", "tier_name", "quantity",
		"usage_quantity", "base_price", "markup_amount", "final_price", "position", "created_at",
	}
)

// ListFilter narrows estimate listings and exports.
type ListFilter struct {
	PartnerID *uuid.UUID
	Status    *Status
	Search    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    uint64
}

// Store persists estimates in Postgres. Every write is a single statement;
// Builder supplies the compensation that ties header and items together.
type Store struct {
	DB db.Querier
}

// CreateHeader implements Writer. A reference collision yields ErrDuplicateReference.
func (s Store) CreateHeader(ctx context.Context, e Estimate) (Estimate, error) {
	var out Estimate
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("estimates").
		Columns("partner_id", "reference_number", "customer_name", "customer_email", "customer_company",
			"customer_phone", "notes", "status", "total_monthly", "total_yearly").
		Values(e.PartnerID, e.ReferenceNumber, e.CustomerName, e.CustomerEmail, e.CustomerCompany,
			e.CustomerPhone, e.Notes, e.Status, e.TotalMonthly, e.TotalYearly).
		Suffix("RETURNING "+strings.Join(headerColumns, ", ")))
	switch {
	case err == nil:
		return out, nil
	case db.IsUniqueViolation(err, referenceConstraint):
		return Estimate{}, ErrDuplicateReference
	case db.IsForeignKeyViolation(err):
		return Estimate{}, ErrUnknownPartner
	}
	return Estimate{}, err
}

// CreateItem implements Writer.
func (s Store) CreateItem(ctx context.Context, item Item) (Item, error) {
	var out Item
	err := db.Get(ctx, s.DB, &out, db.Builder().
		Insert("estimate_items").
		Columns("estimate_id", "product_id", "tier_id", "product_name", "tier_name", "quantity",
			"usage_quantity", "base_price", "markup_amount", "final_price", "position").
		Values(item.EstimateID, item.ProductID, item.TierID, item.ProductName, item.TierName, item.Quantity,
			item.UsageQuantity, item.BasePrice, item.MarkupAmount, item.FinalPrice, item.Position).
		Suffix("RETURNING "+strings.Join(itemColumns, ", ")))
	return out, err
}

// DeleteHeader implements Writer. Items go with it through the cascade.
func (s Store) DeleteHeader(ctx context.Context, id uuid.UUID) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().Delete("estimates").Where("id = ?", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func selectHeaders() sq.SelectBuilder {
	cols := make([]string, 0, len(headerColumns)+2)
	for _, c := range headerColumns {
		cols = append(cols, "e."+c)
	}
	cols = append(cols, "p.name AS partner_name", "p.slug AS partner_slug")
	return db.Builder().Select(cols...).From("estimates e").Join("partners p ON p.id = e.partner_id")
}

// Get loads an estimate with its items.
func (s Store) Get(ctx context.Context, id uuid.UUID) (Estimate, error) {
	return s.getOne(ctx, selectHeaders().Where("e.id = ?", id))
}

// GetByReference loads an estimate by its reference number.
func (s Store) GetByReference(ctx context.Context, ref string) (Estimate, error) {
	return s.getOne(ctx, selectHeaders().Where("e.reference_number = ?", ref))
}

func (s Store) getOne(ctx context.Context, query sq.SelectBuilder) (Estimate, error) {
	var e Estimate
	if err := db.Get(ctx, s.DB, &e, query); err != nil {
		if db.IsNotFound(err) {
			return Estimate{}, ErrNotFound
		}
		return Estimate{}, err
	}
	items, err := s.items(ctx, e.ID)
	if err != nil {
		return Estimate{}, err
	}
	e.Items = items
	return e, nil
}

func (s Store) items(ctx context.Context, estimateID uuid.UUID) ([]Item, error) {
	var items []Item
	err := db.Select(ctx, s.DB, &items, db.Builder().
		Select(itemColumns...).
		From("estimate_items").
		Where("estimate_id = ?", estimateID).
		OrderBy("position"))
	if items == nil {
		items = []Item{}
	}
	return items, err
}

func filtered(query sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.PartnerID != nil {
		query = query.Where("e.partner_id = ?", *f.PartnerID)
	}
	if f.Status != nil {
		query = query.Where("e.status = ?", string(*f.Status))
	}
	if f.From != nil {
		query = query.Where("e.created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("e.created_at < ?", *f.To)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		query = query.Where(sq.Or{
			sq.ILike{"e.reference_number": like},
			sq.ILike{"e.customer_name": like},
			sq.ILike{"e.customer_email": like},
			sq.ILike{"e.customer_company": like},
		})
	}
	return query
}

// List returns a page of estimate headers, newest first, and the total match count.
func (s Store) List(ctx context.Context, f ListFilter) ([]Estimate, int64, error) {
	countQuery := filtered(db.Builder().Select("COUNT(*)").From("estimates e"), f)
	total, err := db.Count(ctx, s.DB, countQuery)
	if err != nil {
		return nil, 0, err
	}
	query := filtered(selectHeaders(), f).OrderBy("e.created_at DESC", "e.id")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit)).Offset(f.Offset)
	}
	var out []Estimate
	if err := db.Select(ctx, s.DB, &out, query); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateStatus changes the status of an estimate.
func (s Store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	n, err := db.Exec(ctx, s.DB, db.Builder().
		Update("estimates").
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an estimate and its items.
func (s Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DeleteHeader(ctx, id)
}
