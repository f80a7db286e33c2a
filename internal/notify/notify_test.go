package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/estimate"
	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
)

type capturingClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *capturingClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: QueueNotifications}, nil
}

func sampleEstimate() estimate.Estimate {
	return estimate.Estimate{
		ID:              uuid.New(),
		ReferenceNumber: "EST-LX1-ABCDEFGH",
		PartnerName:     "Acme Cloud",
		PartnerSlug:     "acme",
		CustomerName:    "Jane <Doe>",
		CustomerEmail:   "jane@example.com",
		TotalMonthly:    decimal.RequireFromString("48"),
		TotalYearly:     decimal.RequireFromString("576"),
	}
}

func TestEnqueuerPublishesPayload(t *testing.T) {
	client := &capturingClient{}
	est := sampleEstimate()
	require.NoError(t, Enqueuer{Client: client}.EstimateCreated(context.Background(), est))

	require.Len(t, client.tasks, 1)
	task := client.tasks[0]
	require.Equal(t, TypeEstimateCreated, task.Type())
	var p EstimateCreatedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	require.Equal(t, est.ID.String(), p.EstimateID)
	require.Equal(t, "EST-LX1-ABCDEFGH", p.ReferenceNumber)
	require.Equal(t, "acme", p.PartnerSlug)
	require.Equal(t, "jane@example.com", p.CustomerEmail)
	require.Equal(t, "48.00", p.TotalMonthly)
}

func TestEnqueuerWithoutClientIsNoop(t *testing.T) {
	require.NoError(t, Enqueuer{}.EstimateCreated(context.Background(), sampleEstimate()))

	failing := &capturingClient{err: errors.New("redis down")}
	require.Error(t, Enqueuer{Client: failing}.EstimateCreated(context.Background(), sampleEstimate()))
}

func taskFor(t *testing.T, est estimate.Estimate) *asynq.Task {
	t.Helper()
	task, err := NewEstimateCreatedTask(EstimateCreatedPayload{
		EstimateID:      est.ID.String(),
		ReferenceNumber: est.ReferenceNumber,
		PartnerSlug:     est.PartnerSlug,
		PartnerName:     est.PartnerName,
		CustomerName:    est.CustomerName,
		CustomerEmail:   est.CustomerEmail,
		TotalMonthly:    "48.00",
		TotalYearly:     "576.00",
	})
	require.NoError(t, err)
	return task
}

func TestProcessEstimateCreatedSendsEmail(t *testing.T) {
	mail := &common.Outbox{}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := Handler{Mail: mail, Enabled: true, Locker: &lock.Locker{R: client, Prefix: "lock:"}, Logger: zerolog.Nop()}
	est := sampleEstimate()
	require.NoError(t, h.ProcessEstimateCreated(context.Background(), taskFor(t, est)))

	require.Len(t, mail.Sent(), 1)
	msg := mail.Sent()[0]
	require.Equal(t, "jane@example.com", msg.To)
	require.Equal(t, "Your estimate EST-LX1-ABCDEFGH from Acme Cloud", msg.Subject)
	require.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	require.Contains(t, msg.HTML, "576.00")

	// a redelivered task does not mail the customer twice
	require.NoError(t, h.ProcessEstimateCreated(context.Background(), taskFor(t, est)))
	require.Len(t, mail.Sent(), 1)

	// a different estimate is still mailed
	require.NoError(t, h.ProcessEstimateCreated(context.Background(), taskFor(t, sampleEstimate())))
	require.Len(t, mail.Sent(), 2)
}

func TestProcessEstimateCreatedSkips(t *testing.T) {
	mail := &common.Outbox{}
	disabled := Handler{Mail: mail, Enabled: false, Logger: zerolog.Nop()}
	require.NoError(t, disabled.ProcessEstimateCreated(context.Background(), taskFor(t, sampleEstimate())))
	require.Empty(t, mail.Sent())

	enabled := Handler{Mail: mail, Enabled: true, Logger: zerolog.Nop()}
	err := enabled.ProcessEstimateCreated(context.Background(), asynq.NewTask(TypeEstimateCreated, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterRoutesTaskType(t *testing.T) {
	mail := &common.Outbox{}
	mux := asynq.NewServeMux()
	Handler{Mail: mail, Enabled: true, Logger: zerolog.Nop()}.Register(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), taskFor(t, sampleEstimate())))
	require.Len(t, mail.Sent(), 1)
}
