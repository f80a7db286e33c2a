package estimate

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seijin4ka/CostNavigator-sub000/internal/catalog"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/markup"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

// CodeReferenceExhausted is returned when no unique reference number could be
// allocated within the configured attempts.
const CodeReferenceExhausted = "REFERENCE_EXHAUSTED"

const (
	maxUsageQuantity    = 1_000_000_000
	usageScale          = 4 // estimate_items.usage_quantity is NUMERIC(20,4)
	compensationTimeout = 5 * time.Second
	defaultMaxAttempts  = 5
	defaultRetryDelay   = 25 * time.Millisecond
	tracerName          = "github.com/seijin4ka/CostNavigator-sub000/internal/estimate"
)

var (
	// ErrDuplicateReference is returned by a Writer when the reference number
	// is already taken.
	ErrDuplicateReference = errors.New("estimate reference number already exists")
	// ErrReferenceExhausted is wrapped in the error returned when every
	// reference attempt collided.
	ErrReferenceExhausted = errors.New("could not allocate a unique reference number")
)

// CatalogReader batch-loads active catalog entries. Missing ids are absent
// from the returned maps.
type CatalogReader interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
	FindTiersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Tier, error)
}

// Writer persists estimate headers and items one statement at a time.
type Writer interface {
	CreateHeader(ctx context.Context, e Estimate) (Estimate, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	DeleteHeader(ctx context.Context, id uuid.UUID) error
}

// Notifier is told about every successfully created estimate.
type Notifier interface {
	EstimateCreated(ctx context.Context, e Estimate) error
}

// References yields candidate reference numbers.
type References interface {
	Next() (string, error)
}

// Builder turns a cart into a persisted, priced estimate.
type Builder struct {
	catalog     CatalogReader
	rules       markup.RuleLister
	writer      Writer
	refs        References
	notifier    Notifier
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// BuilderConfig groups Builder dependencies.
type BuilderConfig struct {
	Catalog     CatalogReader
	Rules       markup.RuleLister
	Writer      Writer
	References  References
	Notifier    Notifier
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      zerolog.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		catalog:     cfg.Catalog,
		rules:       cfg.Rules,
		writer:      cfg.Writer,
		refs:        cfg.References,
		notifier:    cfg.Notifier,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(tracerName),
	}
	if b.maxAttempts < 1 {
		b.maxAttempts = defaultMaxAttempts
	}
	if b.retryDelay < 0 {
		b.retryDelay = defaultRetryDelay
	}
	if b.refs == nil {
		b.refs = NewReferenceGenerator("EST")
	}
	return b
}

// Create validates the cart, prices it for p and stores the estimate with its
// items. Nothing is persisted when validation or lookups fail; if an item
// insert fails the header is deleted again before the error is returned.
func (b *Builder) Create(ctx context.Context, p partner.Partner, req CreateRequest) (Estimate, error) {
	ctx, span := b.tracer.Start(ctx, "estimate.create", trace.WithAttributes(
		attribute.String("partner.slug", p.Slug),
		attribute.Int("estimate.items", len(req.Items)),
	))
	defer span.End()
	start := time.Now()

	est, err := b.create(ctx, p, req)
	if err != nil {
		kind := failureKind(err)
		obs.RecordEstimateFailure(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		return Estimate{}, err
	}
	obs.RecordEstimateCreated(p.Slug)
	obs.ObserveEstimateBuild(obs.DurationMillis(time.Since(start)))
	span.SetAttributes(attribute.String("estimate.reference", est.ReferenceNumber))

	if b.notifier != nil {
		if err := b.notifier.EstimateCreated(ctx, est); err != nil {
			b.logger.Warn().Err(err).Str("reference", est.ReferenceNumber).Msg("estimate notification not queued")
		}
	}
	return est, nil
}

func (b *Builder) create(ctx context.Context, p partner.Partner, req CreateRequest) (Estimate, error) {
	if err := validateRequest(req); err != nil {
		return Estimate{}, err
	}
	header, items, err := b.price(ctx, p, req)
	if err != nil {
		return Estimate{}, err
	}
	return b.persist(ctx, header, items)
}

func validateRequest(req CreateRequest) error {
	if err := common.Validate(req); err != nil {
		return err
	}
	details := map[string]string{}
	for i, it := range req.Items {
		if it.UsageQuantity == nil {
			continue
		}
		switch u := *it.UsageQuantity; {
		case u.IsNegative() || u.GreaterThan(decimal.NewFromInt(maxUsageQuantity)):
			details[itemField(i, "usage_quantity")] = "must be between 0 and 1000000000"
		case !u.Equal(u.Truncate(usageScale)):
			details[itemField(i, "usage_quantity")] = "must have at most 4 decimal places"
		}
	}
	if len(details) > 0 {
		return common.NewValidationError("validation failed", details)
	}
	return nil
}

// price resolves every line against one batched read of products, tiers and
// markup rules.
func (b *Builder) price(ctx context.Context, p partner.Partner, req CreateRequest) (Estimate, []Item, error) {
	productIDs, tierIDs := collectIDs(req.Items)
	products, err := b.catalog.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return Estimate{}, nil, common.NewPersistenceError("failed to load products", err)
	}
	tiers, err := b.catalog.FindTiersByIDs(ctx, tierIDs)
	if err != nil {
		return Estimate{}, nil, common.NewPersistenceError("failed to load tiers", err)
	}
	snap, err := markup.LoadSnapshot(ctx, b.rules, p.ID, productIDs, p.DefaultMarkup())
	if err != nil {
		return Estimate{}, nil, common.NewPersistenceError("failed to load markup rules", err)
	}

	items := make([]Item, 0, len(req.Items))
	finals := make([]decimal.Decimal, 0, len(req.Items))
	for i, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return Estimate{}, nil, common.NewNotFound("product", line.ProductID)
		}
		item := Item{
			ProductID:     &product.ID,
			ProductName:   product.Name,
			Quantity:      line.Quantity,
			UsageQuantity: line.UsageQuantity,
			BasePrice:     decimal.Zero,
			MarkupAmount:  decimal.Zero,
			FinalPrice:    decimal.Zero,
			Position:      i,
		}
		// a line without a tier is a custom-quote placeholder priced at zero
		if line.TierID != nil {
			tier, ok := tiers[*line.TierID]
			if !ok || tier.ProductID != product.ID {
				return Estimate{}, nil, common.NewNotFound("tier", *line.TierID)
			}
			res := snap.Resolve(product.ID, &tier.ID)
			priced := pricing.PriceLine(tier.PricingTier(), res.Markup(), line.Quantity, line.UsageQuantity)
			item.TierID = &tier.ID
			item.TierName = &tier.Name
			item.BasePrice = priced.BasePrice
			item.MarkupAmount = priced.MarkupAmount
			item.FinalPrice = priced.FinalPrice
		}
		items = append(items, item)
		finals = append(finals, item.FinalPrice)
	}

	monthly, yearly := pricing.Totals(finals...)
	header := Estimate{
		PartnerID:       p.ID,
		PartnerName:     p.Name,
		PartnerSlug:     p.Slug,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerCompany: req.CustomerCompany,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		Status:          StatusDraft,
		TotalMonthly:    monthly,
		TotalYearly:     yearly,
	}
	return header, items, nil
}

// persist runs the creation saga: insert the header under a fresh reference
// (retrying collisions), insert each item, and delete the header again if an
// item insert fails.
func (b *Builder) persist(ctx context.Context, header Estimate, items []Item) (Estimate, error) {
	created, err := b.insertHeader(ctx, header)
	if err != nil {
		return Estimate{}, err
	}
	created.PartnerName, created.PartnerSlug = header.PartnerName, header.PartnerSlug
	created.Items = make([]Item, 0, len(items))
	for _, item := range items {
		item.EstimateID = created.ID
		stored, err := b.writer.CreateItem(ctx, item)
		if err != nil {
			b.compensate(ctx, created, err)
			return Estimate{}, common.NewPersistenceError("failed to store estimate items", err)
		}
		created.Items = append(created.Items, stored)
	}
	return created, nil
}

func (b *Builder) insertHeader(ctx context.Context, header Estimate) (Estimate, error) {
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		ref, err := b.refs.Next()
		if err != nil {
			return Estimate{}, common.NewInternal(err)
		}
		header.ReferenceNumber = ref
		created, err := b.writer.CreateHeader(ctx, header)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return Estimate{}, common.NewPersistenceError("failed to store estimate", err)
		}
		obs.RecordReferenceCollision()
		b.logger.Debug().Str("reference", ref).Int("attempt", attempt).Msg("estimate reference collision")
		if attempt < b.maxAttempts {
			if err := sleep(ctx, b.retryDelay); err != nil {
				return Estimate{}, common.NewPersistenceError("estimate creation cancelled", err)
			}
		}
	}
	return Estimate{}, common.NewAppError(CodeReferenceExhausted, ErrReferenceExhausted.Error(), http.StatusServiceUnavailable, ErrReferenceExhausted)
}

// compensate deletes a header whose items could not be stored. It runs even
// if ctx was cancelled; a failed delete is logged and the original error wins.
func (b *Builder) compensate(ctx context.Context, e Estimate, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	b.logger.Warn().Err(cause).Str("estimate_id", e.ID.String()).Str("reference", e.ReferenceNumber).Msg("item insert failed, deleting estimate header")
	if err := b.writer.DeleteHeader(cctx, e.ID); err != nil {
		obs.RecordCompensation("failed")
		b.logger.Error().Err(err).Str("estimate_id", e.ID.String()).Str("reference", e.ReferenceNumber).Msg("orphaned estimate header, compensating delete failed")
		return
	}
	obs.RecordCompensation("ok")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func collectIDs(lines []ItemRequest) (products, tiers []uuid.UUID) {
	seenProduct := make(map[uuid.UUID]struct{}, len(lines))
	seenTier := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seenProduct[line.ProductID]; !ok {
			seenProduct[line.ProductID] = struct{}{}
			products = append(products, line.ProductID)
		}
		if line.TierID == nil {
			continue
		}
		if _, ok := seenTier[*line.TierID]; !ok {
			seenTier[*line.TierID] = struct{}{}
			tiers = append(tiers, *line.TierID)
		}
	}
	return products, tiers
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

func failureKind(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case common.CodeValidation:
			return "validation"
		case common.CodeNotFound:
			return "not_found"
		case CodeReferenceExhausted:
			return "reference_exhausted"
		}
	}
	return "persistence"
}
