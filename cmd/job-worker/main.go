// Package main 支付入账消费者入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/infrastructure/messaging"
	"ai-tutor-api/internal/wire"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	rs := cfg.Messaging.RedisStream
	// 多环境共用一个 Redis 时用前缀隔离消费者组
	group := messaging.ConsumerGroupTopup
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + ":" + string(group))
	}
	consumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamPaymentConfirmed,
		Group:         group,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MessageTypePaymentConfirmed, paymentConfirmedHandler(worker.Topup))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, rs.DLQAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("job-worker started", "stream", string(messaging.StreamPaymentConfirmed))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
