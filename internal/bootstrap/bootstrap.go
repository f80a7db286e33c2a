// Package bootstrap prepares storage on instance start: schema migrations,
// the first admin account and the protected direct partner. Every step is
// idempotent against storage state, so all instances may run it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/auth"
	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
)

const lockKey = "bootstrap"

type locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

type adminSeeder interface {
	HasAdmins(ctx context.Context) (bool, error)
	CreateAdmin(ctx context.Context, email, name, password string) (auth.Admin, error)
}

type partnerSeeder interface {
	EnsureDirect(ctx context.Context) (bool, error)
}

// Runner performs the start-up steps under a cluster-wide lock.
type Runner struct {
	Locker   locker
	LockTTL  time.Duration
	Migrate  func() error
	Admins   adminSeeder
	Partners partnerSeeder

	AdminEmail    string
	AdminPassword string
	AdminName     string

	Logger zerolog.Logger
}

// Run executes the bootstrap steps. Without a Redis client the steps run
// unlocked.
func (r Runner) Run(ctx context.Context) error {
	if r.Locker == nil {
		return r.run(ctx)
	}
	err := r.Locker.WithLock(ctx, lockKey, r.LockTTL, r.run)
	if errors.Is(err, lock.ErrNotConfigured) {
		r.Logger.Warn().Msg("bootstrap lock unavailable, running unlocked")
		return r.run(ctx)
	}
	return err
}

func (r Runner) run(ctx context.Context) error {
	start := time.Now()
	if r.Migrate != nil {
		if err := r.Migrate(); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		r.Logger.Info().Msg("database migrations applied")
	}
	if err := r.seedAdmin(ctx); err != nil {
		return err
	}
	if r.Partners != nil {
		created, err := r.Partners.EnsureDirect(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap: ensure direct partner: %w", err)
		}
		if created {
			r.Logger.Info().Msg("direct partner created")
		}
	}
	r.Logger.Info().Dur("took", time.Since(start)).Msg("bootstrap complete")
	return nil
}

func (r Runner) seedAdmin(ctx context.Context) error {
	if r.Admins == nil {
		return nil
	}
	exists, err := r.Admins.HasAdmins(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: count admins: %w", err)
	}
	if exists {
		return nil
	}
	email := strings.TrimSpace(r.AdminEmail)
	if email == "" || r.AdminPassword == "" {
		r.Logger.Warn().Msg("no admin account exists and ADMIN_EMAIL/ADMIN_PASSWORD are not set")
		return nil
	}
	admin, err := r.Admins.CreateAdmin(ctx, email, r.AdminName, r.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap: create admin: %w", err)
	}
	r.Logger.Info().Str("admin_id", admin.ID.String()).Str("email", admin.Email).Msg("initial admin created")
	return nil
}
