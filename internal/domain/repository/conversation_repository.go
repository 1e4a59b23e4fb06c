// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-tutor-api/internal/domain/entity"
)

type ConversationRepository interface {
	// Create 并发创建同一 (chapter, student) 会话时返回 ErrDuplicate
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	GetByChapterAndStudent(ctx context.Context, chapterID, studentID string) (*entity.Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	// ListEarliest 按时间正序返回最早的 limit 条消息
	ListEarliest(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)
	ListByConversation(ctx context.Context, conversationID string, pagination Pagination) (*PagedResult[*entity.Message], error)
}
