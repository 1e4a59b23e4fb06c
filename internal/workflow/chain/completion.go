package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "ai-tutor-api/internal/domain/service"
	wfnode "ai-tutor-api/internal/workflow/node"
	workflowport "ai-tutor-api/internal/workflow/port"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

// CompletionChain 单轮非流式模型调用：init -> llm -> finalize
type CompletionChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*llmctx.CompletionRequest, *llmctx.CompletionResult]
	chainErr  error
}

func NewCompletionChain(factory workflowport.ChatModelFactory) *CompletionChain {
	return &CompletionChain{factory: factory}
}

// Complete 调用模型。上游错误统一映射为 UpstreamUnavailable，不做自动重试。
func (c *CompletionChain) Complete(ctx context.Context, req llmctx.CompletionRequest) (*llmctx.CompletionResult, error) {
	if c == nil || c.factory == nil {
		return nil, apperrors.ErrConfiguration.WithDetail("llm factory not configured")
	}
	if len(req.Messages) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("completion messages are empty")
	}
	if strings.TrimSpace(req.UpstreamModel) == "" {
		return nil, apperrors.ErrConfiguration.WithDetail("upstream model is required")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	ctx = llmctx.WithWorkflowModel(ctx, req.Workflow, req.Model)

	runnable, err := c.getChain()
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}
	out, err := runnable.Invoke(ctx, &req)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrUpstreamUnavailable.WithError(err)
	}
	return out, nil
}

type completionChainState struct {
	In     *llmctx.CompletionRequest
	OutMsg *schema.Message
}

func (c *CompletionChain) getChain() (compose.Runnable[*llmctx.CompletionRequest, *llmctx.CompletionResult], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CompletionChain) buildChain(ctx context.Context) (compose.Runnable[*llmctx.CompletionRequest, *llmctx.CompletionResult], error) {
	chain := compose.NewChain[*llmctx.CompletionRequest, *llmctx.CompletionResult]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *llmctx.CompletionRequest) (*completionChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return &completionChainState{In: in}, nil
		}),
		compose.WithNodeName("completion.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *completionChainState) (*completionChainState, error) {
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, apperrors.ErrConfiguration.WithError(err)
			}

			outMsg, err := chatModel.Generate(ctx, st.In.Messages, buildCompletionOptions(st.In, st.In.JSONObject)...)
			if err != nil && st.In.JSONObject && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_object not supported, fallback to prompt-only",
					"provider", st.In.Provider,
					"model", st.In.UpstreamModel,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.In.Messages, buildCompletionOptions(st.In, false)...)
			}
			if err != nil {
				return nil, apperrors.ErrUpstreamUnavailable.WithError(err)
			}
			if outMsg == nil {
				return nil, apperrors.ErrUpstreamUnavailable.WithDetail("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("completion.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *completionChainState) (*llmctx.CompletionResult, error) {
			out := &llmctx.CompletionResult{Content: st.OutMsg.Content}
			if st.OutMsg.ResponseMeta != nil && st.OutMsg.ResponseMeta.Usage != nil {
				out.PromptTokens = st.OutMsg.ResponseMeta.Usage.PromptTokens
				out.CompletionTokens = st.OutMsg.ResponseMeta.Usage.CompletionTokens
			} else {
				logger.Warn(ctx, "llm response carries no usage, metering zero tokens",
					"model", st.In.Model,
				)
			}
			return out, nil
		}),
		compose.WithNodeName("completion.finalize"),
	)

	return chain.Compile(ctx)
}

func buildCompletionOptions(in *llmctx.CompletionRequest, jsonObject bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	opts = append(opts, model.WithModel(strings.TrimSpace(in.UpstreamModel)))
	if in.Temperature > 0 {
		opts = append(opts, model.WithTemperature(in.Temperature))
	}
	if in.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(in.MaxTokens))
	}
	if jsonObject {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}
