package eino

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ai-tutor-api/internal/domain/service"
	"ai-tutor-api/pkg/metrics"
)

func TestChatModelHandler_RecordsTokensByBilledModel(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowModel(context.Background(), service.WorkflowTutor, "obs_test_model")
	info := &einocb.RunInfo{Name: "completion.llm", Type: "OpenAI"}

	ctx = h.OnStart(ctx, info, &model.CallbackInput{Config: &model.Config{Model: "gpt-4o-mini"}})
	h.OnEnd(ctx, info, &model.CallbackOutput{TokenUsage: &model.TokenUsage{PromptTokens: 120, CompletionTokens: 30}})

	assert.Equal(t, 120.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("tutor", "obs_test_model", "prompt")))
	assert.Equal(t, 30.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("tutor", "obs_test_model", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("tutor", "obs_test_model", "success")))
}

func TestChatModelHandler_CountsErrors(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowModel(context.Background(), service.WorkflowGrading, "obs_err_model")

	ctx = h.OnStart(ctx, nil, nil)
	h.OnError(ctx, nil, errors.New("rate limited"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("grading", "obs_err_model", "error")))
}
