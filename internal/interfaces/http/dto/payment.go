package dto

import (
	"fmt"
	"strconv"
	"strings"
)

// 支付渠道事件类型
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// PaymentWebhookEvent 支付渠道回调事件（只解析用到的字段）
type PaymentWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession 结账会话，下单时在 metadata 中写入 userId 与 creditsCount
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// PurchasedCredits 从 metadata 解析购买账户与点数
func (s *CheckoutSession) PurchasedCredits() (string, int64, error) {
	accountID := strings.TrimSpace(s.Metadata["userId"])
	if accountID == "" {
		return "", 0, fmt.Errorf("metadata.userId is missing")
	}
	raw := strings.TrimSpace(s.Metadata["creditsCount"])
	credits, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || credits <= 0 {
		return "", 0, fmt.Errorf("metadata.creditsCount is invalid: %q", raw)
	}
	return accountID, credits, nil
}

// WebhookAck 回调确认
type WebhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}
