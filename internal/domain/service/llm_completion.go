package service

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// CompletionRequest 一次非流式模型调用
type CompletionRequest struct {
	Workflow string
	// Model 计费模型名
	Model         string
	Provider      string
	UpstreamModel string

	Messages    []*schema.Message
	MaxTokens   int
	Temperature float32
	// JSONObject 要求模型以 JSON 对象输出
	JSONObject bool
	Timeout    time.Duration
}

// CompletionResult 模型输出及上游上报的 token 用量
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LanguageModel 编排层对模型调用的最小依赖
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
