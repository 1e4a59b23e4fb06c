// Package llm 按提供商管理 eino ChatModel 客户端
package llm

import (
	"context"
	"fmt"
	"sync"

	"ai-tutor-api/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory 按提供商惰性创建并缓存 ChatModel。
// 上游模型名、温度和 max_tokens 在每次调用时通过 option 传入，客户端本身只绑定凭据与地址。
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定提供商的 ChatModel，名称为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, provider string) (model.BaseChatModel, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[provider]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[provider]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", provider)
	}
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api_key", provider)
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		Timeout: providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", provider, err)
	}

	f.models[provider] = chatModel
	return chatModel, nil
}
