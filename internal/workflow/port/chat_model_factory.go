package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名获取 ChatModel；空名称返回默认提供商。
type ChatModelFactory interface {
	Get(ctx context.Context, provider string) (model.BaseChatModel, error)
}
