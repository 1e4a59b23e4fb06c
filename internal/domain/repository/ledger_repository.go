// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/domain/entity"
)

// LedgerRepository 账本存储：余额行 + 只追加流水
type LedgerRepository interface {
	// GetBalance 读取余额，账户不存在时返回 nil, nil
	GetBalance(ctx context.Context, accountID string) (*entity.CreditBalance, error)
	// ApplyDelta 原子地将 delta 加到余额上（不存在则以 delta 创建），返回变更后的余额
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) (*entity.CreditBalance, error)
	AppendTransaction(ctx context.Context, tx *entity.LedgerTransaction) error
	// ListTransactions 按时间倒序分页
	ListTransactions(ctx context.Context, accountID string, pagination Pagination) (*PagedResult[*entity.LedgerTransaction], error)
	// SumTransactions 账户全部流水金额之和
	SumTransactions(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// PaymentEventRepository 支付事件去重记录
type PaymentEventRepository interface {
	// Claim 登记事件，首次登记返回 true，重复投递返回 false
	Claim(ctx context.Context, event *entity.PaymentEvent) (bool, error)
	AttachTransaction(ctx context.Context, providerEventID, transactionID string) error
}
