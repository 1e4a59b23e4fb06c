package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-tutor-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishPaymentConfirmed 发布支付确认事件，消息 ID 使用支付渠道事件 ID
func (p *Producer) PublishPaymentConfirmed(ctx context.Context, payment *PaymentConfirmedMessage) (string, error) {
	msg, err := NewMessage(payment.EventID, MessageTypePaymentConfirmed, payment.AccountID, payment)
	if err != nil {
		return "", err
	}
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata("request_id", reqID)
	}
	if traceID := trace.SpanContextFromContext(ctx).TraceID(); traceID.IsValid() {
		msg.SetMetadata("trace_id", traceID.String())
	}

	return p.Publish(ctx, StreamPaymentConfirmed, msg)
}
