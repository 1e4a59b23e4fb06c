// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
)

// LedgerRepository 账本仓储
type LedgerRepository struct {
	client *Client
}

func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

func (r *LedgerRepository) GetBalance(ctx context.Context, accountID string) (*entity.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.GetBalance")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var balance entity.CreditBalance
	if err := db.Where("account_id = ?", accountID).Take(&balance).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return &balance, nil
}

// ApplyDelta 使用 INSERT ... ON CONFLICT 做单语句累加，并发写入同一账户不会丢失更新
func (r *LedgerRepository) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) (*entity.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ApplyDelta")
	defer span.End()

	db := getDB(ctx, r.client.db)
	now := time.Now()
	row := &entity.CreditBalance{
		AccountID: accountID,
		Balance:   delta,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("credit_balances.balance + EXCLUDED.balance"),
			"version":    gorm.Expr("credit_balances.version + 1"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(row).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to apply balance delta: %w", err)
	}

	var balance entity.CreditBalance
	if err := db.Where("account_id = ?", accountID).Take(&balance).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to reload credit balance: %w", err)
	}
	return &balance, nil
}

func (r *LedgerRepository) AppendTransaction(ctx context.Context, tx *entity.LedgerTransaction) error {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.AppendTransaction")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(tx).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append ledger transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.LedgerTransaction], error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ListTransactions")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.LedgerTransaction{}).Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count ledger transactions: %w", err)
	}

	var txs []*entity.LedgerTransaction
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&txs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}

	return repository.NewPagedResult(txs, total, pagination), nil
}

func (r *LedgerRepository) SumTransactions(ctx context.Context, accountID string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.SumTransactions")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var sum decimal.Decimal
	row := db.Model(&entity.LedgerTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ?", accountID).
		Row()
	if err := row.Scan(&sum); err != nil {
		span.RecordError(err)
		return decimal.Zero, fmt.Errorf("failed to sum ledger transactions: %w", err)
	}
	return sum, nil
}

// PaymentEventRepository 支付事件仓储
type PaymentEventRepository struct {
	client *Client
}

func NewPaymentEventRepository(client *Client) *PaymentEventRepository {
	return &PaymentEventRepository{client: client}
}

func (r *PaymentEventRepository) Claim(ctx context.Context, event *entity.PaymentEvent) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.PaymentEventRepository.Claim")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to claim payment event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentEventRepository) AttachTransaction(ctx context.Context, providerEventID, transactionID string) error {
	ctx, span := tracer.Start(ctx, "postgres.PaymentEventRepository.AttachTransaction")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.PaymentEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Update("transaction_id", transactionID).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to attach ledger transaction to payment event: %w", err)
	}
	return nil
}
