package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// CodeRateLimited is the error code of throttled responses.
const CodeRateLimited = "RATE_LIMITED"

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler rejects requests over the configured rate with 429. Limiter
// failures go to OnError and the request is let through.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		setRateHeaders(w.Header(), h.Config.Max, d)
		if !d.Allowed {
			wait := int(math.Ceil(time.Until(d.Reset).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(wait, 1)))
			common.JSONError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setRateHeaders(h http.Header, limit int, d Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
}

// PartnerClientKey buckets requests per partner and client address, so one
// busy storefront cannot exhaust another partner's allowance.
func PartnerClientKey(r *http.Request) string {
	partner := common.PartnerSlug(r.Context())
	if partner == "" {
		partner = "-"
	}
	return partner + ":" + common.ClientIP(r)
}
