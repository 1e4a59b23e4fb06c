package metering

import (
	"context"

	"github.com/shopspring/decimal"

	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

// Reconciliation 余额与流水之和的对账结果
type Reconciliation struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
	Drift     decimal.Decimal `json:"drift"`
}

func (r *Reconciliation) Consistent() bool {
	return r.Drift.IsZero()
}

// Reconcile 对单个账户对账；余额行不存在时按零处理
func (s *Service) Reconcile(ctx context.Context, accountID string) (*Reconciliation, error) {
	balance, err := s.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sum, err := s.ledger.SumTransactions(ctx, accountID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	r := &Reconciliation{
		AccountID: accountID,
		Balance:   balance,
		LedgerSum: sum,
		Drift:     balance.Sub(sum),
	}
	if !r.Consistent() {
		logger.Warn(ctx, "ledger drift detected",
			"account_id", accountID,
			"balance", balance.String(),
			"ledger_sum", sum.String(),
		)
	}
	return r, nil
}
