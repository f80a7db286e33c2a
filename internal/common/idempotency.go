package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader is the request header carrying the client supplied key.
const IdempotencyHeader = "Idempotency-Key"

// Idem provides an Idempotency-Key middleware backed by Redis. A key is
// claimed for TTL on first use; replays are rejected with 409. The claim is
// kept only when the request took effect: any failure other than 409 or 429
// releases it so the client can retry with the same key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(r *http.Request, header string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + " " + header))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(IdempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		key := idemKey(r, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		rec := &idemRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if releaseClaim(rec.status) {
			_ = i.R.Del(context.Background(), key).Err()
		}
	})
}

func releaseClaim(status int) bool {
	switch {
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return false
	default:
		return status >= http.StatusBadRequest
	}
}

type idemRecorder struct {
	http.ResponseWriter
	status int
}

func (r *idemRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
