package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

const emailConstraint = "admin_users_email_key"

var (
	// ErrNotFound is returned when no admin matches the lookup.
	ErrNotFound = errors.New("admin not found")
	// ErrEmailTaken is returned when an admin with the email already exists.
	ErrEmailTaken = errors.New("admin email already registered")
)

// Admin is an administrator account. PasswordHash never leaves the package
// through JSON.
type Admin struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

var columns = []string{
	"id", "email", "name", "password_hash", "is_active", "last_login_at", "created_at", "updated_at",
}

// Store persists admin users in Postgres.
type Store struct {
	DB db.Querier
}

// FindByEmail looks an admin up by case-insensitive email.
func (s Store) FindByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	query := db.Builder().Select(columns...).From("admin_users").
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if err := db.Get(ctx, s.DB, &a, query); err != nil {
		if db.IsNotFound(err) {
			return Admin{}, ErrNotFound
		}
		return Admin{}, err
	}
	return a, nil
}

// Get loads an admin by id.
func (s Store) Get(ctx context.Context, id uuid.UUID) (Admin, error) {
	var a Admin
	if err := db.Get(ctx, s.DB, &a, db.Builder().Select(columns...).From("admin_users").Where("id = ?", id)); err != nil {
		if db.IsNotFound(err) {
			return Admin{}, ErrNotFound
		}
		return Admin{}, err
	}
	return a, nil
}

// Create inserts an admin with an already hashed password.
func (s Store) Create(ctx context.Context, email, name, passwordHash string) (Admin, error) {
	var a Admin
	query := db.Builder().Insert("admin_users").
		Columns("email", "name", "password_hash").
		Values(email, name, passwordHash).
		Suffix("RETURNING " + strings.Join(columns, ", "))
	if err := db.Get(ctx, s.DB, &a, query); err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return Admin{}, ErrEmailTaken
		}
		return Admin{}, err
	}
	return a, nil
}

// Count returns the number of admin accounts.
func (s Store) Count(ctx context.Context) (int64, error) {
	return db.Count(ctx, s.DB, db.Builder().Select("COUNT(*)").From("admin_users"))
}

// TouchLogin stamps last_login_at.
func (s Store) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.Exec(ctx, s.DB, db.Builder().Update("admin_users").
		Set("last_login_at", at).
		Where("id = ?", id))
	return err
}
