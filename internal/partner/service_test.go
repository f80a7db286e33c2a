package partner

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/pricing"
)

func directPartner() Partner {
	return Partner{ID: uuid.New(), Name: "Direct", Slug: DirectSlug, IsActive: true,
		DefaultMarkupType: pricing.MarkupPercentage, DefaultMarkupValue: decimal.Zero}
}

func validInput(slug string) Input {
	return Input{
		Name:               "Acme Cloud",
		Slug:               slug,
		PrimaryColor:       "#112233",
		DefaultMarkupType:  "percentage",
		DefaultMarkupValue: decimal.NewFromInt(20),
	}
}

func newTestService(t *testing.T, store *memoryStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(ServiceConfig{Store: store, Cache: cache.New(client, time.Minute), Logger: zerolog.Nop()}), mr
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, newMemoryStore())
	ctx := context.Background()

	bad := validInput("Acme Cloud!")
	_, err := svc.Create(ctx, bad)
	require.True(t, common.HasCode(err, common.CodeValidation))

	bad = validInput("acme")
	bad.PrimaryColor = "red"
	_, err = svc.Create(ctx, bad)
	require.True(t, common.HasCode(err, common.CodeValidation))

	bad = validInput("acme")
	bad.DefaultMarkupValue = decimal.NewFromInt(-5)
	_, err = svc.Create(ctx, bad)
	require.True(t, common.HasCode(err, common.CodeValidation))

	bad = validInput("acme")
	bad.DefaultMarkupType = "tiered"
	_, err = svc.Create(ctx, bad)
	require.True(t, common.HasCode(err, common.CodeValidation))

	p, err := svc.Create(ctx, validInput("  ACME  "))
	require.NoError(t, err)
	require.Equal(t, "acme", p.Slug)
	require.True(t, p.IsActive)
	require.Equal(t, defaultSecondaryColor, p.SecondaryColor)

	_, err = svc.Create(ctx, validInput("acme"))
	require.True(t, common.HasCode(err, common.CodeConflict))
}

func TestDirectPartnerIsProtected(t *testing.T) {
	direct := directPartner()
	svc, _ := newTestService(t, newMemoryStore(direct))
	ctx := context.Background()

	err := svc.Delete(ctx, direct.ID)
	require.True(t, common.HasCode(err, common.CodeConflict))

	rename := validInput("direct-sales")
	_, err = svc.Update(ctx, direct.ID, rename)
	require.True(t, common.HasCode(err, common.CodeConflict))

	keep := validInput(DirectSlug)
	keep.Name = "Direct Sales"
	updated, err := svc.Update(ctx, direct.ID, keep)
	require.NoError(t, err)
	require.Equal(t, "Direct Sales", updated.Name)
}

func TestDeletePartnerWithEstimatesConflicts(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)
	p, err := svc.Create(context.Background(), validInput("acme"))
	require.NoError(t, err)
	store.inUse[p.ID] = true

	err = svc.Delete(context.Background(), p.ID)
	require.True(t, common.HasCode(err, common.CodeConflict))

	require.True(t, common.HasCode(svc.Delete(context.Background(), uuid.New()), common.CodeNotFound))
}

func TestBySlugCachesAndHidesInactive(t *testing.T) {
	store := newMemoryStore()
	svc, mr := newTestService(t, store)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput("acme"))
	require.NoError(t, err)

	got, err := svc.BySlug(ctx, "ACME")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.True(t, mr.Exists(cache.KeyPartner("acme")))

	_, err = svc.BySlug(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 1, store.lookups)

	inactive := validInput("acme")
	off := false
	inactive.IsActive = &off
	_, err = svc.Update(ctx, p.ID, inactive)
	require.NoError(t, err)
	require.False(t, mr.Exists(cache.KeyPartner("acme")))

	_, err = svc.BySlug(ctx, "acme")
	require.True(t, common.HasCode(err, common.CodeNotFound))

	_, err = svc.BySlug(ctx, "../etc")
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestDefaultMarkup(t *testing.T) {
	direct := directPartner()
	direct.DefaultMarkupValue = decimal.NewFromInt(15)
	svc, _ := newTestService(t, newMemoryStore(direct))

	m, err := svc.DefaultMarkup(context.Background(), direct.ID)
	require.NoError(t, err)
	require.Equal(t, pricing.MarkupPercentage, m.Type)
	require.True(t, m.Value.Equal(decimal.NewFromInt(15)))

	_, err = svc.DefaultMarkup(context.Background(), uuid.New())
	require.True(t, common.HasCode(err, common.CodeNotFound))
}
