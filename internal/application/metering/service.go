// Package metering 将模型用量折算为费用并记入账本
package metering

import (
	"context"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	"ai-tutor-api/internal/domain/service"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

// Service 账本读写的唯一入口：余额变更与流水追加总在同一事务内
type Service struct {
	pricing *pricing.Table
	ledger  repository.LedgerRepository
	txMgr   repository.Transactor
}

func NewService(table *pricing.Table, ledger repository.LedgerRepository, txMgr repository.Transactor) *Service {
	return &Service{
		pricing: table,
		ledger:  ledger,
		txMgr:   txMgr,
	}
}

var (
	_ service.UsageMeter   = (*Service)(nil)
	_ service.FundsChecker = (*Service)(nil)
)

// MeterUsage 按单价扣费。模型调用已经发生，这里失败不会回滚模型调用，只返回可重试的存储错误。
func (s *Service) MeterUsage(ctx context.Context, in service.LLMUsageInput) (*entity.LedgerTransaction, error) {
	if in.AccountID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("account id is required")
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("token counts must not be negative")
	}

	price, err := s.pricing.Lookup(in.Model)
	if err != nil {
		return nil, err
	}
	cost := price.Cost(in.PromptTokens, in.CompletionTokens)

	tx := entity.NewDebitTransaction(in.AccountID, cost, in.Model, in.PromptTokens, in.CompletionTokens, in.Notes)
	err = s.txMgr.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.ApplyDelta(ctx, in.AccountID, cost.Neg()); err != nil {
			return err
		}
		return s.ledger.AppendTransaction(ctx, tx)
	})
	if err != nil {
		metrics.LedgerEntriesTotal.WithLabelValues(string(entity.TransactionKindDebit), "error").Inc()
		logger.Error(ctx, "failed to meter llm usage", err,
			"account_id", in.AccountID,
			"workflow", in.Workflow,
			"model", in.Model,
			"cost", cost.String(),
		)
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(entity.TransactionKindDebit), "success").Inc()
	metrics.LedgerCreditsDebited.WithLabelValues(in.Model).Add(cost.InexactFloat64())
	logger.Info(ctx, "llm usage metered",
		"account_id", in.AccountID,
		"workflow", in.Workflow,
		"model", in.Model,
		"prompt_tokens", in.PromptTokens,
		"completion_tokens", in.CompletionTokens,
		"cost", cost.String(),
		"transaction_id", tx.ID,
	)
	return tx, nil
}

// CreditAccount 充值入账
func (s *Service) CreditAccount(ctx context.Context, accountID string, amount decimal.Decimal, notes string) (*entity.LedgerTransaction, error) {
	if accountID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("account id is required")
	}
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidParam.WithDetail("credit amount must be positive")
	}

	tx := entity.NewCreditTransaction(accountID, amount, notes)
	err := s.txMgr.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.ApplyDelta(ctx, accountID, amount); err != nil {
			return err
		}
		return s.ledger.AppendTransaction(ctx, tx)
	})
	if err != nil {
		metrics.LedgerEntriesTotal.WithLabelValues(string(entity.TransactionKindCredit), "error").Inc()
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(entity.TransactionKindCredit), "success").Inc()
	metrics.LedgerCreditsGranted.Add(amount.InexactFloat64())
	return tx, nil
}

// Balance 账户余额；从未发生资金事件的账户余额为零
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	b, err := s.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if b == nil {
		return decimal.Zero, nil
	}
	return b.Balance, nil
}

// EnsureFunds 余额必须严格为正。这里只做检查不做预留，并发请求可能造成有限的透支。
func (s *Service) EnsureFunds(ctx context.Context, accountID, workflow string) error {
	b, err := s.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return apperrors.ErrStorageUnavailable.WithError(err)
	}
	if !b.IsSpendable() {
		metrics.InsufficientCreditsTotal.WithLabelValues(workflow).Inc()
		logger.Warn(ctx, "insufficient credits", "account_id", accountID, "workflow", workflow)
		return apperrors.ErrInsufficientCredits
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.LedgerTransaction], error) {
	result, err := s.ledger.ListTransactions(ctx, accountID, pagination)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	return result, nil
}
