package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountDrift 余额与流水合计不一致的账户
type AccountDrift struct {
	AccountID string
	Balance   decimal.Decimal
	LedgerSum decimal.Decimal
	// HasBalance 为 false 表示只有流水没有余额行
	HasBalance bool
}

// Drift 余额减去流水合计
func (d AccountDrift) Drift() decimal.Decimal {
	return d.Balance.Sub(d.LedgerSum)
}

// AuditRepository 只读对账查询
type AuditRepository interface {
	// ListAccountIDs 按账户 ID 升序返回 afterID 之后的至多 limit 个有余额行的账户
	ListAccountIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	// FindDrift 返回给定账户中余额与流水合计不一致的账户
	FindDrift(ctx context.Context, accountIDs []string) ([]AccountDrift, error)
	// FindOrphanLedgers 返回有非零流水合计却没有余额行的账户
	FindOrphanLedgers(ctx context.Context) ([]AccountDrift, error)
}
