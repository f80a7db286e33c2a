package resilience

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// GuardedSender puts a breaker in front of a Mailer. While the breaker is
// open sends fail with ErrOpenCircuit without reaching the relay.
type GuardedSender struct {
	Next    common.Mailer
	Breaker *Breaker
}

func (g GuardedSender) Send(ctx context.Context, m common.Message) error {
	if g.Breaker == nil {
		return g.Next.Send(ctx, m)
	}
	return g.Breaker.Do(ctx, func() error {
		return g.Next.Send(ctx, m)
	})
}

// RetryDelay adapts Backoff to asynq's retry hook, capped at max.
func RetryDelay(base, max time.Duration, jitterPct float64) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		d := Backoff(base, n+1, jitterPct)
		if max > 0 && d > max {
			return max
		}
		return d
	}
}
