package notify

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/seijin4ka/CostNavigator-sub000/internal/estimate"
)

const (
	// QueueNotifications is the asynq queue notification tasks run on.
	QueueNotifications = "notifications"
	defaultMaxRetry    = 5
	defaultTaskTimeout = 30 * time.Second
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes notification tasks. It satisfies estimate.Notifier.
type Enqueuer struct {
	Client   taskEnqueuer
	MaxRetry int
}

// EstimateCreated queues the confirmation for e. The estimate id doubles as
// the task id so a retried request never queues two confirmations.
func (q Enqueuer) EstimateCreated(ctx context.Context, e estimate.Estimate) error {
	if q.Client == nil {
		return nil
	}
	retry := q.MaxRetry
	if retry <= 0 {
		retry = defaultMaxRetry
	}
	task, err := NewEstimateCreatedTask(EstimateCreatedPayload{
		EstimateID:      e.ID.String(),
		ReferenceNumber: e.ReferenceNumber,
		PartnerSlug:     e.PartnerSlug,
		PartnerName:     e.PartnerName,
		CustomerName:    e.CustomerName,
		CustomerEmail:   e.CustomerEmail,
		TotalMonthly:    e.TotalMonthly.StringFixed(2),
		TotalYearly:     e.TotalYearly.StringFixed(2),
	})
	if err != nil {
		return err
	}
	_, err = q.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.TaskID(TypeEstimateCreated+":"+e.ID.String()),
		asynq.MaxRetry(retry),
		asynq.Timeout(defaultTaskTimeout),
	)
	return err
}
