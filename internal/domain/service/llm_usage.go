package service

import (
	"context"

	"ai-tutor-api/internal/domain/entity"
)

// LLMUsageInput 一次已完成模型调用的计费数据
type LLMUsageInput struct {
	AccountID string
	Workflow  string
	// Model 计费模型名，必须存在于单价表
	Model string

	PromptTokens     int
	CompletionTokens int
	Notes            string
}

// UsageMeter 将模型用量折算为费用并原子地记入账本
type UsageMeter interface {
	MeterUsage(ctx context.Context, in LLMUsageInput) (*entity.LedgerTransaction, error)
}

// FundsChecker 发起计费调用前的余额检查
type FundsChecker interface {
	EnsureFunds(ctx context.Context, accountID, workflow string) error
}
