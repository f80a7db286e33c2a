package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var draining atomic.Bool

// SetReady toggles readiness. The API flips it off when shutdown begins.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Probe checks one dependency. Timeout bounds a single check.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Postgres probes the pool with a ping.
func Postgres(pool *pgxpool.Pool, timeout time.Duration) Probe {
	return Probe{Name: "db", Timeout: timeout, Check: pool.Ping}
}

// Redis probes the client with PING.
func Redis(client redis.UniversalClient, timeout time.Duration) Probe {
	return Probe{Name: "redis", Timeout: timeout, Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	Probes []Probe
}

// Live answers 200 while the process is up.
func (Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 if any fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}
	if len(h.Probes) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "dependencies unavailable"})
		return
	}

	results := make(map[string]string, len(h.Probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range h.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := "ok"
			if err := p.run(r.Context()); err != nil {
				msg = err.Error()
			}
			mu.Lock()
			results[p.Name] = msg
			mu.Unlock()
		}()
	}
	wg.Wait()

	code := http.StatusOK
	for _, msg := range results {
		if msg != "ok" {
			code = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, code, results)
}

func (p Probe) run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
