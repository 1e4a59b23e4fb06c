package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/domain/entity"
)

// BalanceResponse 余额。金额以十进制字符串返回，避免浮点误差。
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// TransactionResponse 账本流水
type TransactionResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Amount           string    `json:"amount"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReconcileResponse 对账结果
type ReconcileResponse struct {
	AccountID  string `json:"account_id"`
	Balance    string `json:"balance"`
	LedgerSum  string `json:"ledger_sum"`
	Drift      string `json:"drift"`
	Consistent bool   `json:"consistent"`
}

func ToBalanceResponse(accountID string, balance decimal.Decimal) *BalanceResponse {
	return &BalanceResponse{AccountID: accountID, Balance: balance.String()}
}

func ToTransactionList(items []*entity.LedgerTransaction) []*TransactionResponse {
	out := make([]*TransactionResponse, 0, len(items))
	for _, t := range items {
		item := &TransactionResponse{
			ID:               t.ID,
			Kind:             string(t.Kind),
			Amount:           t.Amount.String(),
			PromptTokens:     t.PromptTokens,
			CompletionTokens: t.CompletionTokens,
			Notes:            t.Notes,
			CreatedAt:        t.CreatedAt,
		}
		if t.Model != nil {
			item.Model = *t.Model
		}
		out = append(out, item)
	}
	return out
}

func ToReconcileResponse(r *metering.Reconciliation) *ReconcileResponse {
	return &ReconcileResponse{
		AccountID:  r.AccountID,
		Balance:    r.Balance.String(),
		LedgerSum:  r.LedgerSum.String(),
		Drift:      r.Drift.String(),
		Consistent: r.Consistent(),
	}
}
