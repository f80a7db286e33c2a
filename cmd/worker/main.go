package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/config"
	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
	"github.com/seijin4ka/CostNavigator-sub000/internal/notify"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
	"github.com/seijin4ka/CostNavigator-sub000/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for tasks")
	}

	srv := asynq.NewServer(taskOpt, asynq.Config{
		Concurrency:    cfg.WorkerConcurrency,
		Queues:         map[string]int{notify.QueueNotifications: 1},
		Logger:         taskLogger{logger},
		RetryDelayFunc: resilience.RetryDelay(time.Second, 5*time.Minute, 0.2),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	mailBreaker := resilience.NewBreaker("mail", resilience.Policy{MinRequests: 5, FailureRatio: 0.5, Cooldown: 30 * time.Second},
		resilience.WithMetrics(resilience.NewMetrics(cfg.MetricsNamespace, nil)),
		resilience.WithLogger(logger),
	)
	handler := notify.Handler{
		Mail: resilience.GuardedSender{
			Next:    common.LogMailer{Logger: logger, From: cfg.NotifyFrom},
			Breaker: mailBreaker,
		},
		Enabled: cfg.NotifyEnabled,
		Locker:  &lock.Locker{R: redisClient, Prefix: "lock:"},
		Logger:  logger,
	}
	mux := asynq.NewServeMux()
	handler.Register(mux)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

// taskLogger adapts zerolog to asynq.Logger.
type taskLogger struct {
	l zerolog.Logger
}

func (t taskLogger) Debug(args ...any) { t.l.Debug().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Info(args ...any)  { t.l.Info().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Warn(args ...any)  { t.l.Warn().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Error(args ...any) { t.l.Error().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Fatal(args ...any) { t.l.Fatal().Msg(fmt.Sprint(args...)) }
