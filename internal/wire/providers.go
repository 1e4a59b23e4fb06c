package wire

import (
	"context"

	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/application/topup"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/infrastructure/messaging"
	"ai-tutor-api/internal/infrastructure/persistence/postgres"
	"ai-tutor-api/internal/infrastructure/persistence/redis"
	"ai-tutor-api/internal/interfaces/http/handler"
	"ai-tutor-api/pkg/logger"
)

// Worker 支付入账消费者所需依赖
type Worker struct {
	Topup       *topup.Service
	RedisClient *redis.Client
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvidePricingTable 启动时校验单价表，配置错误直接失败
func ProvidePricingTable(ctx context.Context, cfg *config.Config) (*pricing.Table, error) {
	table, err := pricing.NewTableFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "pricing table loaded",
		"default_model", table.DefaultModel(),
		"models", table.Models(),
	)
	return table, nil
}

// ProvideHealthHandler postgres 与 redis 都是就绪检查的必需项
func ProvideHealthHandler(pg *postgres.Client, rdb *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, rdb)
}
