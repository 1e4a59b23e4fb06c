package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmctx "ai-tutor-api/internal/domain/service"
	apperrors "ai-tutor-api/pkg/errors"
)

type scriptedModel struct {
	replies []*schema.Message
	errs    []error
	calls   int
}

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	i := m.calls
	m.calls++
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return m.replies[i], nil
}

func (m *scriptedModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type staticFactory struct {
	m model.BaseChatModel
}

func (f staticFactory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	return f.m, nil
}

func replyWithUsage(content string, prompt, completion int) *schema.Message {
	msg := schema.AssistantMessage(content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}}
	return msg
}

func baseRequest() llmctx.CompletionRequest {
	return llmctx.CompletionRequest{
		Workflow:      llmctx.WorkflowTutor,
		Model:         "gpt_4o_mini",
		Provider:      "openai",
		UpstreamModel: "gpt-4o-mini",
		Messages:      []*schema.Message{schema.UserMessage("What is a closure?")},
		MaxTokens:     500,
		Temperature:   0.7,
	}
}

func TestCompletionChain_ReturnsUsage(t *testing.T) {
	m := &scriptedModel{replies: []*schema.Message{replyWithUsage("A closure captures variables.", 120, 30)}}
	c := NewCompletionChain(staticFactory{m: m})

	out, err := c.Complete(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "A closure captures variables.", out.Content)
	assert.Equal(t, 120, out.PromptTokens)
	assert.Equal(t, 30, out.CompletionTokens)
}

func TestCompletionChain_JSONObjectFallback(t *testing.T) {
	m := &scriptedModel{
		replies: []*schema.Message{nil, replyWithUsage(`[]`, 10, 2)},
		errs:    []error{errors.New("400 Unknown parameter: response_format"), nil},
	}
	c := NewCompletionChain(staticFactory{m: m})

	req := baseRequest()
	req.JSONObject = true
	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, m.calls)
	assert.Equal(t, "[]", out.Content)
}

func TestCompletionChain_UpstreamErrorIsNotRetried(t *testing.T) {
	m := &scriptedModel{
		replies: []*schema.Message{nil},
		errs:    []error{errors.New("503 service unavailable")},
	}
	c := NewCompletionChain(staticFactory{m: m})

	_, err := c.Complete(context.Background(), baseRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamUnavailable))
	assert.Equal(t, 1, m.calls)
}
