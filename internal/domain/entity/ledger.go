// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind 账本流水方向
type TransactionKind string

const (
	TransactionKindDebit  TransactionKind = "debit"
	TransactionKindCredit TransactionKind = "credit"
)

// CreditBalance 账户余额（每个账户至多一行，首次发生资金事件时惰性创建）
type CreditBalance struct {
	AccountID string          `json:"account_id" gorm:"type:varchar(64);primaryKey"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(20,8);not null"`
	Version   int64           `json:"version" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}

// IsSpendable 余额是否允许发起新的计费调用
func (b *CreditBalance) IsSpendable() bool {
	return b != nil && b.Balance.IsPositive()
}

// LedgerTransaction 账本流水，只追加、不修改
type LedgerTransaction struct {
	ID               string          `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID        string          `json:"account_id" gorm:"type:varchar(64);not null;index:idx_ledger_tx_account_created,priority:1"`
	Kind             TransactionKind `json:"kind" gorm:"type:varchar(16);not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(20,8);not null"`
	PromptTokens     *int            `json:"prompt_tokens,omitempty"`
	CompletionTokens *int            `json:"completion_tokens,omitempty"`
	Model            *string         `json:"model,omitempty" gorm:"type:varchar(64)"`
	Notes            string          `json:"notes" gorm:"type:text;not null"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime;index:idx_ledger_tx_account_created,priority:2"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

// NewDebitTransaction 创建一笔模型用量扣费流水，amount 为正数，落库为负数
func NewDebitTransaction(accountID string, amount decimal.Decimal, model string, promptTokens, completionTokens int, notes string) *LedgerTransaction {
	return &LedgerTransaction{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		Kind:             TransactionKindDebit,
		Amount:           amount.Neg(),
		PromptTokens:     &promptTokens,
		CompletionTokens: &completionTokens,
		Model:            &model,
		Notes:            notes,
		CreatedAt:        time.Now(),
	}
}

// NewCreditTransaction 创建一笔充值流水
func NewCreditTransaction(accountID string, amount decimal.Decimal, notes string) *LedgerTransaction {
	return &LedgerTransaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      TransactionKindCredit,
		Amount:    amount,
		Notes:     notes,
		CreatedAt: time.Now(),
	}
}
