package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string

	ReferencePrefix      string
	ReferenceMaxAttempts int
	ReferenceRetryDelay  time.Duration

	CatalogCacheTTL   time.Duration
	AnalyticsCacheTTL time.Duration
	DefaultPageLimit  int
	MaxPageLimit      int
	IdempotencyTTL    time.Duration
	BodyLimitBytes    int64

	PublicEstimateRateLimit  int
	PublicEstimateRateWindow time.Duration
	LoginRateLimit           string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	MigrationsAutoRun bool
	BootstrapLockTTL  time.Duration

	NotifyEnabled     bool
	NotifyFrom        string
	WorkerConcurrency int

	AuditEnabled bool

	DefaultPartnerSlug string
	PartnerHeader      string
	PartnerRootDomain  string

	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	HTTPBuckets          string
	EnablePrometheus     bool
	EnableTracing        bool
	OTLPEndpoint         string
	TracingSamplingRatio float64
	SlowQueryThreshold   time.Duration
}

// Load reads the environment, after merging an optional .env file, and
// validates the result. Every missing required variable is reported.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	r := reader{k}

	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		RedisURL:           r.str("REDIS_URL", ""),
		JWTSecret:          r.str("JWT_SECRET", ""),
		JWTIssuer:          r.str("JWT_ISSUER", "costnavigator"),
		JWTAudience:        r.str("JWT_AUDIENCE", "costnavigator-admin"),
		AccessTokenTTL:     r.dur("ACCESS_TOKEN_TTL", 15*time.Minute),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS"),

		ReferencePrefix:      strings.ToUpper(r.str("ESTIMATE_REFERENCE_PREFIX", "EST")),
		ReferenceMaxAttempts: r.integer("ESTIMATE_REFERENCE_MAX_ATTEMPTS", 5),
		ReferenceRetryDelay:  r.dur("ESTIMATE_REFERENCE_RETRY_DELAY", 25*time.Millisecond),

		CatalogCacheTTL:   r.dur("CATALOG_CACHE_TTL", 5*time.Minute),
		AnalyticsCacheTTL: r.dur("ANALYTICS_CACHE_TTL", time.Minute),
		DefaultPageLimit:  r.integer("PAGINATION_DEFAULT_LIMIT", 20),
		MaxPageLimit:      r.integer("PAGINATION_MAX_LIMIT", 100),
		IdempotencyTTL:    r.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		BodyLimitBytes:    int64(r.integer("BODY_LIMIT_BYTES", 1<<20)),

		PublicEstimateRateLimit:  r.integer("PUBLIC_ESTIMATE_RATE_LIMIT", 20),
		PublicEstimateRateWindow: r.dur("PUBLIC_ESTIMATE_RATE_WINDOW", time.Minute),
		LoginRateLimit:           r.str("LOGIN_RATE_LIMIT", "10-M"),

		AdminEmail:    strings.ToLower(r.str("ADMIN_EMAIL", "")),
		AdminPassword: k.String("ADMIN_PASSWORD"),
		AdminName:     r.str("ADMIN_NAME", "Administrator"),

		MigrationsAutoRun: r.flag("MIGRATIONS_AUTO_RUN", true),
		BootstrapLockTTL:  r.dur("BOOTSTRAP_LOCK_TTL", 30*time.Second),

		NotifyEnabled:     r.flag("NOTIFY_ENABLED", false),
		NotifyFrom:        r.str("NOTIFY_FROM", "no-reply@costnavigator.local"),
		WorkerConcurrency: r.integer("WORKER_CONCURRENCY", 5),

		AuditEnabled: r.flag("AUDIT_ENABLED", true),

		DefaultPartnerSlug: strings.ToLower(r.str("DEFAULT_PARTNER_SLUG", "direct")),
		PartnerHeader:      r.str("PARTNER_HEADER", "X-Partner-Slug"),
		PartnerRootDomain:  r.str("PARTNER_ROOT_DOMAIN", ""),

		LogFormat:            r.str("OBS_LOG_FORMAT", "json"),
		LogLevel:             r.str("OBS_LOG_LEVEL", "info"),
		MetricsNamespace:     r.str("OBS_METRICS_NAMESPACE", "costnavigator"),
		HTTPBuckets:          r.str("OBS_HTTP_BUCKETS_MS", ""),
		EnablePrometheus:     r.flag("OBS_ENABLE_PROMETHEUS", true),
		EnableTracing:        r.flag("OBS_ENABLE_TRACING", false),
		OTLPEndpoint:         r.str("OBS_OTLP_ENDPOINT", ""),
		TracingSamplingRatio: r.float("OBS_TRACING_SAMPLING_RATIO", 1),
		SlowQueryThreshold:   r.dur("OBS_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	for name, v := range map[string]string{
		"DATABASE_URL": c.DatabaseURL,
		"REDIS_URL":    c.RedisURL,
		"JWT_SECRET":   c.JWTSecret,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if c.ReferenceMaxAttempts < 1 {
		errs = append(errs, errors.New("ESTIMATE_REFERENCE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MaxPageLimit < 1 {
		c.MaxPageLimit = 100
	}
	if c.DefaultPageLimit < 1 || c.DefaultPageLimit > c.MaxPageLimit {
		c.DefaultPageLimit = c.MaxPageLimit
	}
	return errors.Join(errs...)
}

// HTTPAddr is the listen address derived from PORT.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.HasPrefix(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// IsProduction reports APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// reader returns typed values from koanf. Blank or unparsable values yield
// the default.
type reader struct{ k *koanf.Koanf }

func (r reader) str(key, def string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return def
}

func (r reader) integer(key string, def int) int {
	if v, err := strconv.Atoi(r.str(key, "")); err == nil {
		return v
	}
	return def
}

func (r reader) float(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(r.str(key, ""), 64); err == nil {
		return v
	}
	return def
}

func (r reader) dur(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(r.str(key, "")); err == nil {
		return v
	}
	return def
}

func (r reader) flag(key string, def bool) bool {
	switch strings.ToLower(r.str(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func (r reader) list(key string) []string {
	var out []string
	for part := range strings.SplitSeq(r.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
