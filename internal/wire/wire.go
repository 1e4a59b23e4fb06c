//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"ai-tutor-api/internal/application/grading"
	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/application/prompt"
	"ai-tutor-api/internal/application/topup"
	"ai-tutor-api/internal/application/tutor"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/repository"
	"ai-tutor-api/internal/domain/service"
	"ai-tutor-api/internal/infrastructure/llm"
	"ai-tutor-api/internal/infrastructure/messaging"
	"ai-tutor-api/internal/infrastructure/persistence/postgres"
	"ai-tutor-api/internal/infrastructure/persistence/redis"
	"ai-tutor-api/internal/interfaces/http/handler"
	"ai-tutor-api/internal/interfaces/http/middleware"
	"ai-tutor-api/internal/interfaces/http/router"
	"ai-tutor-api/internal/workflow/chain"
	workflowport "ai-tutor-api/internal/workflow/port"
	workflowprompt "ai-tutor-api/internal/workflow/prompt"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		LLMSet,
		ApplicationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化支付入账消费者依赖
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		ProvideRedisClient,
		ProvidePricingTable,
		metering.NewService,
		topup.NewConfig,
		topup.NewService,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewLedgerRepository,
	postgres.NewPaymentEventRepository,
	postgres.NewCourseRepository,
	postgres.NewConversationRepository,
	postgres.NewMessageRepository,
	postgres.NewTestRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.LedgerRepository), new(*postgres.LedgerRepository)),
	wire.Bind(new(repository.PaymentEventRepository), new(*postgres.PaymentEventRepository)),
	wire.Bind(new(repository.CourseRepository), new(*postgres.CourseRepository)),
	wire.Bind(new(repository.ConversationRepository), new(*postgres.ConversationRepository)),
	wire.Bind(new(repository.MessageRepository), new(*postgres.MessageRepository)),
	wire.Bind(new(repository.TestRepository), new(*postgres.TestRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(handler.PaymentPublisher), new(*messaging.Producer)),
)

// LLMSet 模型调用提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	chain.NewCompletionChain,
	wire.Bind(new(service.LanguageModel), new(*chain.CompletionChain)),
)

// ApplicationSet 计费与编排服务集合
var ApplicationSet = wire.NewSet(
	ProvidePricingTable,
	metering.NewService,
	wire.Bind(new(service.FundsChecker), new(*metering.Service)),
	wire.Bind(new(service.UsageMeter), new(*metering.Service)),
	workflowprompt.NewRegistry,
	prompt.NewAssembler,
	tutor.NewConfig,
	tutor.NewService,
	grading.NewConfig,
	grading.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewTutorHandler,
	handler.NewTestHandler,
	handler.NewCreditHandler,
	handler.NewPaymentHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

