package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

// 计费工作流标识
const (
	WorkflowTutor   = "tutor"
	WorkflowGrading = "grading"
)

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	w := strings.TrimSpace(workflow)
	if w == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyWorkflow, w)
}

// WithModel 记录本次调用的计费模型名（非上游模型名）
func WithModel(ctx context.Context, model string) context.Context {
	m := strings.TrimSpace(model)
	if m == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyModel, m)
}

func WithWorkflowModel(ctx context.Context, workflow, model string) context.Context {
	return WithModel(WithWorkflow(ctx, workflow), model)
}

func WorkflowFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyWorkflow)
}

func ModelFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyModel)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return "unknown"
	}
	return s
}
