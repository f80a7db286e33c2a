// Package resilience guards calls to flaky downstream dependencies.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Policy decides when a breaker trips. Zero fields take defaults.
type Policy struct {
	// MinRequests is the sample size needed before the ratio is trusted.
	MinRequests int
	// FailureRatio in (0,1] trips the breaker.
	FailureRatio float64
	// Cooldown is how long the breaker stays open before admitting a probe.
	Cooldown time.Duration
}

func (p Policy) normalized() Policy {
	p.MinRequests = max(p.MinRequests, 1)
	if p.FailureRatio <= 0 {
		p.FailureRatio = 0.5
	}
	p.FailureRatio = min(p.FailureRatio, 1)
	if p.Cooldown <= 0 {
		p.Cooldown = 30 * time.Second
	}
	return p
}

// Breaker trips once the failure ratio over at least MinRequests calls
// reaches FailureRatio, and admits a single probe after Cooldown.
type Breaker struct {
	name   string
	policy Policy

	mu        sync.Mutex
	state     State
	ok, bad   int
	trippedAt time.Time

	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// Option customises a Breaker.
type Option func(*Breaker)

// WithMetrics reports state and transitions to m.
func WithMetrics(m *Metrics) Option { return func(b *Breaker) { b.metrics = m } }

// WithLogger sets the logger used for transition events.
func WithLogger(l zerolog.Logger) Option { return func(b *Breaker) { b.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(b *Breaker) { b.now = now } }

// NewBreaker returns a closed breaker. name labels logs and metrics.
func NewBreaker(name string, p Policy, opts ...Option) *Breaker {
	if name = strings.TrimSpace(name); name == "" {
		name = "default"
	}
	b := &Breaker{name: name, policy: p.normalized(), logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	b.metrics.setState(b.name, Closed)
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Once the cooldown has passed an
// open breaker goes half-open and admits exactly that caller.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.trippedAt) < b.policy.Cooldown {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		return true
	default:
		// the probe is still out
		return false
	}
}

// Report records the outcome of a call Allow admitted.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if success {
		b.ok++
	} else {
		b.bad++
	}
	n := b.ok + b.bad
	if n < b.policy.MinRequests {
		return
	}
	if float64(b.bad)/float64(n) >= b.policy.FailureRatio {
		b.moveLocked(ctx, Open)
		return
	}
	// decay old outcomes so a long healthy run cannot mask a fresh outage
	if n > 2*b.policy.MinRequests {
		b.ok, b.bad = (b.ok+1)/2, (b.bad+1)/2
	}
}

// Do runs fn when the breaker admits it and reports the outcome.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn()
	b.Report(ctx, err == nil)
	return err
}

func (b *Breaker) moveLocked(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.ok, b.bad = 0, 0
	if to == Open {
		b.trippedAt = b.now()
	}
	b.metrics.setState(b.name, to)
	b.metrics.transition(b.name, from, to)

	logger := b.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Info().Str("breaker", b.name).Stringer("from", from).Stringer("to", to)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

// Backoff doubles base for every attempt after the first and spreads the
// result by up to jitterPct in either direction (0.2 means 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << min(max(attempt, 1)-1, 20)
	if jitterPct <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitterPct
	return d + time.Duration(spread*float64(d))
}
