package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

type memoryStore struct {
	mu      sync.Mutex
	admins  map[uuid.UUID]Admin
	touched int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{admins: make(map[uuid.UUID]Admin)}
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return Admin{}, ErrNotFound
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) Create(_ context.Context, email, name, hash string) (Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if strings.EqualFold(a.Email, email) {
			return Admin{}, ErrEmailTaken
		}
	}
	now := time.Now()
	a := Admin{ID: uuid.New(), Email: email, Name: name, PasswordHash: hash, IsActive: true, CreatedAt: now, UpdatedAt: now}
	m.admins[a.ID] = a
	return a, nil
}

func (m *memoryStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.admins)), nil
}

func (m *memoryStore) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.admins[id]
	a.LastLoginAt = &at
	m.admins[id] = a
	m.touched++
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	svc, err := NewService(Config{
		Store:          store,
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Minute,
		Issuer:         "costnavigator",
		Audience:       "costnavigator-admin",
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, store
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(Config{Store: newMemoryStore()})
	require.Error(t, err)
	_, err = NewService(Config{Secret: "x"})
	require.Error(t, err)
}

func TestCreateAdminAndLogin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	has, err := svc.HasAdmins(ctx)
	require.NoError(t, err)
	require.False(t, has)

	_, err = svc.CreateAdmin(ctx, "admin@example.com", "Admin", "short")
	require.True(t, common.HasCode(err, common.CodeValidation))

	admin, err := svc.CreateAdmin(ctx, " Admin@Example.com ", "", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", admin.Email)
	require.Equal(t, "admin@example.com", admin.Name)
	require.NotEqual(t, "correct-horse", admin.PasswordHash)

	_, err = svc.CreateAdmin(ctx, "admin@example.com", "Again", "correct-horse")
	require.True(t, common.HasCode(err, common.CodeConflict))

	has, err = svc.HasAdmins(ctx)
	require.NoError(t, err)
	require.True(t, has)

	result, err := svc.Login(ctx, "ADMIN@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, admin.ID, result.Admin.ID)
	require.NotNil(t, result.Admin.LastLoginAt)
	require.Equal(t, 1, store.touched)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, admin.ID.String(), subject)

	me, err := svc.Me(ctx, subject)
	require.NoError(t, err)
	require.Equal(t, admin.Email, me.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin, err := svc.CreateAdmin(ctx, "admin@example.com", "Admin", "correct-horse")
	require.NoError(t, err)

	for name, creds := range map[string][2]string{
		"wrong password": {"admin@example.com", "battery-staple"},
		"unknown email":  {"nobody@example.com", "correct-horse"},
		"empty":          {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(ctx, creds[0], creds[1])
			require.True(t, common.HasCode(err, codeBadCredentials))
		})
	}

	disabled := store.admins[admin.ID]
	disabled.IsActive = false
	store.admins[admin.ID] = disabled
	_, err = svc.Login(ctx, "admin@example.com", "correct-horse")
	require.True(t, common.HasCode(err, codeBadCredentials))
	require.Zero(t, store.touched)
}

func TestParseAccessTokenRejectsForeignTokens(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })

	build := func() jwt.Token {
		tok, err := jwt.NewBuilder().
			Subject("admin-id").
			Issuer(svc.tokens.issuer).
			Audience([]string{svc.tokens.audience}).
			IssuedAt(fixed).
			Expiration(fixed.Add(time.Minute)).
			Claim(scopeClaim, adminScope).
			Build()
		require.NoError(t, err)
		return tok
	}

	hs384, err := jwt.Sign(build(), jwt.WithKey(jwa.HS384, svc.tokens.secret))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(string(hs384))
	require.True(t, common.HasCode(err, common.CodeUnauthorized))

	otherKey, err := jwt.Sign(build(), jwt.WithKey(jwa.HS256, []byte("another-secret")))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(string(otherKey))
	require.Error(t, err)

	token, _, err := svc.tokens.sign("admin-id", fixed)
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return fixed.Add(2 * time.Minute) })
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)

	_, err = svc.ParseAccessToken("  ")
	require.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	svc, _ := newTestService(t)
	token, _, err := svc.tokens.sign("0b7e5c1a-7b0c-4c55-9a55-1f0b1b8a0c11", time.Now())
	require.NoError(t, err)

	var seen string
	handler := Middleware{Service: svc}.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.AdminID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "0b7e5c1a-7b0c-4c55-9a55-1f0b1b8a0c11", seen)

	// cookies are not a credential
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "cn_admin", Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateAdmin(context.Background(), "admin@example.com", "Admin", "correct-horse")
	require.NoError(t, err)

	h := &Handler{Service: svc, Guard: Middleware{Service: svc}.RequireAuth}
	r := chi.NewRouter()
	r.Route("/auth", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"nope"}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"not-an-email","password":"x"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"correct-horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password_hash")

	var body struct {
		Data LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.AccessToken)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "admin@example.com")
}
