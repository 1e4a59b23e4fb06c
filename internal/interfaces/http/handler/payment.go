package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/infrastructure/messaging"
	"ai-tutor-api/internal/interfaces/http/dto"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

const maxWebhookBody = 1 << 20

// PaymentPublisher 将已验签的支付确认投递给后台入账
type PaymentPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, payment *messaging.PaymentConfirmedMessage) (string, error)
}

// PaymentHandler 支付渠道回调
type PaymentHandler struct {
	publisher       PaymentPublisher
	secret          string
	signatureHeader string
	tolerance       time.Duration
	now             func() time.Time
}

// NewPaymentHandler 未配置回调密钥时返回 ConfigurationError，拒绝启动
func NewPaymentHandler(cfg *config.Config, publisher PaymentPublisher) (*PaymentHandler, error) {
	p := cfg.Billing.Payment
	if strings.TrimSpace(p.WebhookSecret) == "" {
		return nil, apperrors.ErrConfiguration.WithDetail("billing.payment.webhook_secret is required")
	}
	header := p.SignatureHeader
	if header == "" {
		header = "Stripe-Signature"
	}
	return &PaymentHandler{
		publisher:       publisher,
		secret:          p.WebhookSecret,
		signatureHeader: header,
		tolerance:       p.Tolerance,
		now:             time.Now,
	}, nil
}

// Webhook 接收支付回调：验签、解析结账会话、投递到支付确认流
// @Summary 支付回调
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.WebhookAck]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		dto.BadRequest(c, "failed to read request body")
		return
	}

	if err := verifySignature(payload, c.GetHeader(h.signatureHeader), h.secret, h.tolerance, h.now()); err != nil {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		logger.Warn(ctx, "payment webhook signature rejected", "reason", err.Error())
		dto.BadRequest(c, "webhook signature verification failed")
		return
	}

	var event dto.PaymentWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		dto.BadRequest(c, "invalid webhook payload")
		return
	}

	session := event.Data.Object
	if event.Type != dto.EventCheckoutSessionCompleted ||
		(session.PaymentStatus != "" && session.PaymentStatus != "paid") {
		logger.Debug(ctx, "payment webhook event ignored", "event_id", event.ID, "type", event.Type)
		dto.Success(c, dto.WebhookAck{Received: true, Ignored: true})
		return
	}

	accountID, credits, err := session.PurchasedCredits()
	if err != nil {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		logger.Warn(ctx, "payment webhook metadata invalid", "event_id", event.ID, "reason", err.Error())
		dto.BadRequest(c, err.Error())
		return
	}

	msgID, err := h.publisher.PublishPaymentConfirmed(ctx, &messaging.PaymentConfirmedMessage{
		EventID:   event.ID,
		AccountID: accountID,
		Credits:   credits,
		SessionID: session.ID,
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue payment confirmation", err, "event_id", event.ID)
		// 非 2xx 让支付渠道重投
		dto.Error(c, http.StatusServiceUnavailable, "failed to enqueue payment")
		return
	}

	logger.Info(ctx, "payment confirmation enqueued",
		"event_id", event.ID,
		"account_id", accountID,
		"credits", credits,
		"stream_message_id", msgID,
	)
	dto.Success(c, dto.WebhookAck{Received: true, MessageID: msgID})
}
