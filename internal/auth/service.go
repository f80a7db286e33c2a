package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

const (
	defaultAccessTTL   = time.Hour
	minPasswordLength  = 8
	codeBadCredentials = "INVALID_CREDENTIALS"
)

type adminStore interface {
	FindByEmail(ctx context.Context, email string) (Admin, error)
	Get(ctx context.Context, id uuid.UUID) (Admin, error)
	Create(ctx context.Context, email, name, passwordHash string) (Admin, error)
	Count(ctx context.Context) (int64, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Service authenticates administrators and issues access tokens.
type Service struct {
	store  adminStore
	tokens tokenCodec
	now    func() time.Time
	logger zerolog.Logger
}

// Config configures the auth service.
type Config struct {
	Store          adminStore
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Logger         zerolog.Logger
}

// LoginResult bundles the admin and the token issued for it.
type LoginResult struct {
	Admin        Admin     `json:"admin"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_token_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "costnavigator"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "costnavigator-admin"
	}

	return &Service{
		store: cfg.Store,
		tokens: tokenCodec{
			secret:   []byte(secret),
			issuer:   issuer,
			audience: audience,
			ttl:      accessTTL,
			skew:     max(cfg.ClockSkew, 0),
		},
		now:    time.Now,
		logger: cfg.Logger,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func invalidCredentials() *common.AppError {
	return common.NewAppError(codeBadCredentials, "invalid email or password", http.StatusUnauthorized, nil)
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return LoginResult{}, invalidCredentials()
	}

	admin, err := s.store.FindByEmail(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, invalidCredentials()
	}
	if err != nil {
		return LoginResult{}, common.NewInternal(fmt.Errorf("find admin: %w", err))
	}
	if !admin.IsActive {
		return LoginResult{}, invalidCredentials()
	}

	ok, err := argon2id.ComparePasswordAndHash(password, admin.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials()
	}

	token, expiry, err := s.tokens.sign(admin.ID.String(), s.now())
	if err != nil {
		return LoginResult{}, common.NewInternal(fmt.Errorf("sign access token: %w", err))
	}

	now := s.now()
	if err := s.store.TouchLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("admin_id", admin.ID.String()).Msg("last login not recorded")
	} else {
		admin.LastLoginAt = &now
	}

	return LoginResult{Admin: admin, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me fetches the authenticated admin.
func (s *Service) Me(ctx context.Context, adminID string) (Admin, error) {
	id, err := uuid.Parse(strings.TrimSpace(adminID))
	if err != nil {
		return Admin{}, common.NewAppError(common.CodeUnauthorized, "unauthorized", http.StatusUnauthorized, nil)
	}
	admin, err := s.store.Get(ctx, id)
	if err != nil || !admin.IsActive {
		return Admin{}, common.NewAppError(common.CodeUnauthorized, "unauthorized", http.StatusUnauthorized, nil)
	}
	return admin, nil
}

// HasAdmins reports whether any admin account exists.
func (s *Service) HasAdmins(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateAdmin hashes the password and stores a new admin.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (Admin, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return Admin{}, common.NewValidationError("a valid email is required", map[string]string{"email": "email"})
	}
	if len(password) < minPasswordLength {
		return Admin{}, common.NewValidationError("password must be at least 8 characters", map[string]string{"password": "min"})
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = normalized
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	admin, err := s.store.Create(ctx, normalized, name, hash)
	if errors.Is(err, ErrEmailTaken) {
		return Admin{}, common.NewConflict("email is already registered", err)
	}
	if err != nil {
		return Admin{}, common.NewPersistenceError("admin could not be saved", err)
	}
	return admin, nil
}

// ParseAccessToken validates an access token and returns the admin id it was issued to.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError(common.CodeUnauthorized, "missing token", http.StatusUnauthorized, nil)
	}
	adminID, err := s.tokens.verify(trimmed, s.now())
	if err != nil {
		return "", common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
	}
	return adminID, nil
}
