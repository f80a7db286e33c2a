package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/analytics"
	"github.com/seijin4ka/CostNavigator-sub000/internal/audit"
	"github.com/seijin4ka/CostNavigator-sub000/internal/auth"
	"github.com/seijin4ka/CostNavigator-sub000/internal/bootstrap"
	"github.com/seijin4ka/CostNavigator-sub000/internal/cache"
	"github.com/seijin4ka/CostNavigator-sub000/internal/catalog"
	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/config"
	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
	"github.com/seijin4ka/CostNavigator-sub000/internal/estimate"
	"github.com/seijin4ka/CostNavigator-sub000/internal/health"
	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
	"github.com/seijin4ka/CostNavigator-sub000/internal/markup"
	"github.com/seijin4ka/CostNavigator-sub000/internal/notify"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
	"github.com/seijin4ka/CostNavigator-sub000/internal/partner"
	"github.com/seijin4ka/CostNavigator-sub000/internal/ratelimit"
	"github.com/seijin4ka/CostNavigator-sub000/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.EnableTracing,
		ServiceName:   "costnavigator-api",
		Endpoint:      cfg.OTLPEndpoint,
		Exporter:      "otlp",
		SamplingRatio: cfg.TracingSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	tracingEnabled := cfg.EnableTracing
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.Connect(startCtx, cfg.DatabaseURL, "costnavigator-api", obs.PGXTracer{Logger: logger, Slow: cfg.SlowQueryThreshold})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(startCtx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	locker := lock.Locker{R: redisClient, Prefix: "lock:"}
	catalogCache := cache.New(redisClient, cfg.CatalogCacheTTL)
	analyticsCache := cache.New(redisClient, cfg.AnalyticsCacheTTL)

	partnerStore := partner.Store{DB: pool}
	catalogStore := catalog.Store{DB: pool}
	markupStore := markup.Store{DB: pool}
	estimateStore := estimate.Store{DB: pool}

	authService, err := auth.NewService(auth.Config{
		Store:          auth.Store{DB: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		ClockSkew:      30 * time.Second,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	runner := bootstrap.Runner{
		Locker:        locker,
		LockTTL:       cfg.BootstrapLockTTL,
		Admins:        authService,
		Partners:      partnerStore,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		AdminName:     cfg.AdminName,
		Logger:        logger.With().Str("component", "bootstrap").Logger(),
	}
	if cfg.MigrationsAutoRun {
		runner.Migrate = func() error { return db.Migrate(cfg.DatabaseURL) }
	}
	if err := runner.Run(startCtx); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap")
	}

	partnerService := partner.NewService(partner.ServiceConfig{Store: partnerStore, Cache: catalogCache, Logger: logger})
	markupService := markup.NewService(markup.ServiceConfig{
		Store:    markupStore,
		Tiers:    catalogStore,
		Partners: partnerService,
		Cache:    catalogCache,
		Logger:   logger,
	})
	catalogService := catalog.NewService(catalog.ServiceConfig{
		Store:  catalogStore,
		Rules:  markupStore,
		Cache:  catalogCache,
		Logger: logger,
	})

	taskOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for tasks")
	}
	taskClient := asynq.NewClient(taskOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	var notifier estimate.Notifier = notify.Enqueuer{}
	if cfg.NotifyEnabled {
		notifier = notify.Enqueuer{Client: taskClient}
	}

	builder := estimate.NewBuilder(estimate.BuilderConfig{
		Catalog:     catalogStore,
		Rules:       markupStore,
		Writer:      estimateStore,
		References:  estimate.NewReferenceGenerator(cfg.ReferencePrefix),
		Notifier:    notifier,
		MaxAttempts: cfg.ReferenceMaxAttempts,
		RetryDelay:  cfg.ReferenceRetryDelay,
		Logger:      logger.With().Str("component", "estimate").Logger(),
	})
	estimateService := estimate.NewService(estimate.ServiceConfig{Store: estimateStore, Cache: analyticsCache, Logger: logger})

	analyticsService := &analytics.Service{
		Store:  analytics.Store{DB: pool},
		Cache:  analyticsCache,
		Logger: logger,
	}
	auditService := &audit.Service{Store: audit.Store{DB: pool}, Enabled: cfg.AuditEnabled, SamplingRate: 1}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Warn().Err(err).Msg("audit record failed") },
	}

	partnerHandler := partner.NewHandler(partner.HandlerConfig{Service: partnerService, DefaultPerPage: cfg.DefaultPageLimit, MaxPerPage: cfg.MaxPageLimit})
	markupHandler := markup.NewHandler(markupService)
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, DefaultPerPage: cfg.DefaultPageLimit, MaxPerPage: cfg.MaxPageLimit})
	estimateHandler := estimate.NewHandler(estimate.HandlerConfig{Builder: builder, Service: estimateService, DefaultPerPage: cfg.DefaultPageLimit, MaxPerPage: cfg.MaxPageLimit})
	analyticsHandler := &analytics.Handler{Svc: analyticsService}
	auditHandler := audit.Handler{Service: auditService, DefaultPerPage: cfg.DefaultPageLimit, MaxPerPage: cfg.MaxPageLimit}

	loginLimiter, err := ratelimit.NewLoginLimiter(redisClient, cfg.LoginRateLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login limiter")
	}
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := &auth.Handler{Service: authService, LoginLimiter: loginLimiter, Guard: authMiddleware.RequireAuth}

	resolver := partner.NewResolver(partnerService, cfg.PartnerHeader, cfg.PartnerRootDomain, cfg.DefaultPartnerSlug)
	estimateLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:estimates:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PartnerClientKey,
			Window: cfg.PublicEstimateRateWindow,
			Max:    cfg.PublicEstimateRateLimit,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("estimate rate limiter unavailable") },
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.EnablePrometheus {
		httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.HTTPBuckets), nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins, cfg.PartnerHeader))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		health.Postgres(pool, envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500)),
		health.Redis(redisClient, envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)),
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/p/{partner}", func(p chi.Router) {
			p.Use(resolver.Middleware)
			p.Get("/", partnerHandler.Branding)
			p.Get("/catalog", catalogHandler.Public)
			p.With(estimateLimit.Middleware, idem.Middleware).Post("/estimates", estimateHandler.Create)
		})
		v.Get("/estimates/{reference}", estimateHandler.GetPublic)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(security.NoStore)
			admin.Route("/auth", authHandler.Routes)

			admin.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAuth)
				g.Use(auditRecorder.Mutations())
				g.Route("/partners", func(pr chi.Router) {
					partnerHandler.AdminRoutes(pr)
					pr.Route("/{partnerID}/markup-rules", markupHandler.Routes)
				})
				g.Route("/categories", catalogHandler.CategoryRoutes)
				g.Route("/products", catalogHandler.ProductRoutes)
				g.Route("/estimates", estimateHandler.AdminRoutes)
				g.Route("/analytics", analyticsHandler.Routes)
				g.Get("/audit-logs", auditHandler.List)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutdown signal received, draining")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	ms := fallback
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			ms = parsed
		}
	}
	return time.Duration(ms) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
