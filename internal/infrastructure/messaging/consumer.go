package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// ErrPermanent 包装后的错误不再重试，直接进入死信队列
var ErrPermanent = errors.New("permanent failure")

// Consumer 消费者组成员。失败的消息留在 pending 列表中按退避重试，超过次数后移入死信队列。
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   max(5*time.Minute, cfg.Backoff.Max*2),
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
		stopCh:        make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 创建消费者组（已存在则忽略）并在后台开始消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)

	lastClaim := time.Now().Add(-c.claimInterval)

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		c.processDuePending(ctx)
		if time.Since(lastClaim) >= c.claimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    10,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

// decode 从流条目的 data 字段解析消息信封
func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		logger.Error(ctx, "invalid message format", err, "message_id", xmsg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "malformed").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	ctx = logger.WithContext(ctx, logger.MessageIDKey, msg.ID)
	if msg.AccountID != "" {
		ctx = logger.WithContext(ctx, logger.AccountIDKey, msg.AccountID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}

	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("account_id", msg.AccountID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()

	if !exists {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "unhandled").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err)
		c.handleFailure(ctx, xmsg, msg, err)
		return
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "success").Inc()
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

func (c *Consumer) handleFailure(ctx context.Context, xmsg redis.XMessage, msg *Message, err error) {
	retryCount := c.getRetryCount(ctx, xmsg.ID)

	if errors.Is(err, ErrPermanent) || retryCount >= c.retryLimit {
		logger.Warn(ctx, "message moved to DLQ",
			"retry_count", retryCount,
			"permanent", errors.Is(err, ErrPermanent),
		)
		c.moveToDLQ(ctx, msg, err)
		c.ack(ctx, xmsg.ID)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "retry").Inc()
	logger.Info(ctx, "message left pending for retry", "retry_count", retryCount)
}

// getRetryCount 通过 XPENDING 获取消息的投递次数
func (c *Consumer) getRetryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()

	if err != nil || len(pending) == 0 {
		return 0
	}

	return int(pending[0].RetryCount)
}

func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, cause error) {
	dlqStream := c.stream.DLQStream()

	data, err := json.Marshal(map[string]interface{}{
		"original_stream": string(c.stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "failed to marshal DLQ message", err, "stream", dlqStream)
		return
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "failed to publish DLQ message", err, "stream", dlqStream)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "dlq").Inc()
}

// claimToDLQ 认领超过重试次数的消息并移入死信队列
func (c *Consumer) claimToDLQ(ctx context.Context, id string, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message for DLQ", err, "message_id", id)
		return
	}
	for _, xmsg := range claimed {
		if msg, err := decode(xmsg); err == nil {
			c.moveToDLQ(ctx, msg, fmt.Errorf("message exceeded max retries"))
		}
		c.ack(ctx, xmsg.ID)
	}
}

// claimAndProcess 认领 pending 消息并重新处理
func (c *Consumer) claimAndProcess(ctx context.Context, id string, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return
	}
	for _, xmsg := range claimed {
		c.processMessage(ctx, xmsg)
	}
}

// processDuePending 重试本消费者名下退避已到期的消息
func (c *Consumer) processDuePending(ctx context.Context) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Start:    "-",
		End:      "+",
		Count:    20,
		Consumer: c.consumerName,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return
	}

	for _, p := range pending {
		retryCount := int(p.RetryCount)
		if retryCount >= c.retryLimit {
			c.claimToDLQ(ctx, p.ID, 0)
			continue
		}
		backoff := c.backoff.CalculateBackoff(retryCount)
		if p.Idle < backoff {
			continue
		}
		c.claimAndProcess(ctx, p.ID, backoff)
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	if c.reclaimIdle <= 0 {
		return
	}

	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  "-",
		End:    "+",
		Count:  20,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages for reclaim", err)
		}
		return
	}

	for _, p := range pending {
		if p.Consumer == c.consumerName || p.Idle < c.reclaimIdle {
			continue
		}
		if int(p.RetryCount) >= c.retryLimit {
			c.claimToDLQ(ctx, p.ID, c.reclaimIdle)
			continue
		}
		c.claimAndProcess(ctx, p.ID, c.reclaimIdle)
	}
}

// MonitorDLQ 定期检查死信队列长度，超过阈值告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			dlqStream := c.stream.DLQStream()
			length, err := c.client.XLen(ctx, dlqStream).Result()
			if err != nil {
				continue
			}
			if length > alertThreshold {
				logger.Warn(ctx, "DLQ has pending messages",
					"stream", dlqStream,
					"count", length,
				)
			}
		}
	}
}
