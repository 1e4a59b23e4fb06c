// Package pricing 维护可计费模型的单价表
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/config"
	apperrors "ai-tutor-api/pkg/errors"
)

// 单价按每百万 token 计
const tokensPerUnitExp = 6

// Price 单个模型的计费信息
type Price struct {
	Model               string
	Provider            string
	UpstreamModel       string
	PromptTokenCost     decimal.Decimal
	CompletionTokenCost decimal.Decimal
}

// Table 模型单价表，启动时构建后只读
type Table struct {
	prices       map[string]Price
	defaultModel string
}

// NewTable 根据模型配置构建单价表；任一模型配置非法都会导致启动失败
func NewTable(models map[string]config.ModelConfig, defaultModel string) (*Table, error) {
	if len(models) == 0 {
		return nil, apperrors.ErrConfiguration.WithDetail("no billable models configured")
	}

	prices := make(map[string]Price, len(models))
	for name, m := range models {
		if m.UpstreamModel == "" {
			return nil, apperrors.ErrConfiguration.WithDetail("model " + name + " has no upstream_model")
		}
		if m.PromptTokenCost < 0 || m.CompletionTokenCost < 0 {
			return nil, apperrors.ErrConfiguration.WithDetail("model " + name + " has a negative token cost")
		}
		prices[name] = Price{
			Model:               name,
			Provider:            m.Provider,
			UpstreamModel:       m.UpstreamModel,
			PromptTokenCost:     decimal.NewFromFloat(m.PromptTokenCost),
			CompletionTokenCost: decimal.NewFromFloat(m.CompletionTokenCost),
		}
	}

	if _, ok := prices[defaultModel]; !ok {
		return nil, apperrors.ErrConfiguration.WithDetail("default model " + defaultModel + " is not priced")
	}

	return &Table{prices: prices, defaultModel: defaultModel}, nil
}

// NewTableFromConfig 从应用配置构建单价表，并校验每个模型的提供商均已配置
func NewTableFromConfig(cfg *config.Config) (*Table, error) {
	for name, m := range cfg.LLM.Models {
		if _, ok := cfg.LLM.Providers[m.Provider]; !ok {
			return nil, apperrors.ErrConfiguration.WithDetail("model " + name + " references unknown provider " + m.Provider)
		}
	}
	return NewTable(cfg.LLM.Models, cfg.LLM.DefaultModel)
}

// Lookup 查询模型单价；未配置的模型返回配置错误
func (t *Table) Lookup(model string) (Price, error) {
	p, ok := t.prices[model]
	if !ok {
		return Price{}, apperrors.ErrConfiguration.WithDetail("unknown model: " + model)
	}
	return p, nil
}

// Resolve 空字符串解析为默认模型
func (t *Table) Resolve(model string) (Price, error) {
	if model == "" {
		model = t.defaultModel
	}
	return t.Lookup(model)
}

// Cost 计算一次调用的费用：(prompt * 单价 + completion * 单价) / 1e6
func (t *Table) Cost(model string, promptTokens, completionTokens int) (decimal.Decimal, error) {
	p, err := t.Lookup(model)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Cost(promptTokens, completionTokens), nil
}

// Cost 按单价计算费用，结果精确无舍入
func (p Price) Cost(promptTokens, completionTokens int) decimal.Decimal {
	prompt := decimal.NewFromInt(int64(promptTokens)).Mul(p.PromptTokenCost)
	completion := decimal.NewFromInt(int64(completionTokens)).Mul(p.CompletionTokenCost)
	return prompt.Add(completion).Shift(-tokensPerUnitExp)
}

func (t *Table) DefaultModel() string {
	return t.defaultModel
}

// Models 已配置模型名（有序）
func (t *Table) Models() []string {
	names := make([]string, 0, len(t.prices))
	for name := range t.prices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
