// Package entity 定义领域实体
package entity

import "time"

// PaymentEvent 已处理的支付确认事件，用于重复投递去重
type PaymentEvent struct {
	ProviderEventID string    `json:"provider_event_id" gorm:"type:varchar(255);primaryKey"`
	AccountID       string    `json:"account_id" gorm:"type:varchar(64);not null;index"`
	Credits         int64     `json:"credits" gorm:"not null"`
	TransactionID   *string   `json:"transaction_id,omitempty" gorm:"type:uuid"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}

func NewPaymentEvent(providerEventID, accountID string, credits int64) *PaymentEvent {
	return &PaymentEvent{
		ProviderEventID: providerEventID,
		AccountID:       accountID,
		Credits:         credits,
		CreatedAt:       time.Now(),
	}
}
