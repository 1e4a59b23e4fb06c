package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/config"
	apperrors "ai-tutor-api/pkg/errors"
)

func testModels() map[string]config.ModelConfig {
	return map[string]config.ModelConfig{
		"gpt_4o": {
			Provider:            "openai",
			UpstreamModel:       "gpt-4o",
			PromptTokenCost:     2.5,
			CompletionTokenCost: 10,
		},
		"gpt_4o_mini": {
			Provider:            "openai",
			UpstreamModel:       "gpt-4o-mini",
			PromptTokenCost:     0.15,
			CompletionTokenCost: 0.6,
		},
	}
}

func TestTable_Cost(t *testing.T) {
	table, err := NewTable(testModels(), "gpt_4o_mini")
	require.NoError(t, err)

	cost, err := table.Cost("gpt_4o_mini", 1000, 500)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.00045").Equal(cost), "got %s", cost)

	cost, err = table.Cost("gpt_4o", 1000, 500)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0075").Equal(cost), "got %s", cost)

	cost, err = table.Cost("gpt_4o", 0, 0)
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}

func TestTable_UnknownModel(t *testing.T) {
	table, err := NewTable(testModels(), "gpt_4o_mini")
	require.NoError(t, err)

	_, err = table.Cost("claude-unknown", 10, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
}

func TestTable_Resolve(t *testing.T) {
	table, err := NewTable(testModels(), "gpt_4o_mini")
	require.NoError(t, err)

	p, err := table.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.UpstreamModel)
	assert.Equal(t, []string{"gpt_4o", "gpt_4o_mini"}, table.Models())
}

func TestNewTable_RejectsUnpricedDefault(t *testing.T) {
	_, err := NewTable(testModels(), "gpt_5")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
}

func TestNewTableFromConfig_RejectsUnknownProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.DefaultModel = "gpt_4o"
	cfg.LLM.Models = testModels()
	cfg.LLM.Providers = map[string]config.ProviderConfig{"anthropic": {}}

	_, err := NewTableFromConfig(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
}
