package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// NewLoginLimiter throttles admin login attempts per client IP using a
// formatted rate such as "10-M".
func NewLoginLimiter(client redis.UniversalClient, formatted string, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse login rate %q: %w", formatted, err)
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit:login"})
	if err != nil {
		return nil, fmt.Errorf("login limiter store: %w", err)
	}
	instance := limiter.New(store, rate, limiter.WithTrustForwardHeader(true))
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, CodeRateLimited, "too many login attempts, try again later", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error().Err(err).Msg("login limiter unavailable")
			common.JSONError(w, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "login temporarily unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
