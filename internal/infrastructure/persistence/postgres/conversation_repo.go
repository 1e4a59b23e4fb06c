// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
)

type ConversationRepository struct {
	client *Client
}

func NewConversationRepository(client *Client) *ConversationRepository {
	return &ConversationRepository{client: client}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(conversation).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var conversation entity.Conversation
	if err := db.First(&conversation, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

func (r *ConversationRepository) GetByChapterAndStudent(ctx context.Context, chapterID, studentID string) (*entity.Conversation, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.GetByChapterAndStudent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var conversation entity.Conversation
	if err := db.Where("chapter_id = ? AND student_id = ?", chapterID, studentID).Take(&conversation).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

type MessageRepository struct {
	client *Client
}

func NewMessageRepository(client *Client) *MessageRepository {
	return &MessageRepository{client: client}
}

func (r *MessageRepository) Create(ctx context.Context, message *entity.Message) error {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(message).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListEarliest(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.ListEarliest")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var messages []*entity.Message
	if err := db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Message], error) {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.ListByConversation")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Message{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []*entity.Message
	if err := query.Order("created_at ASC").
		Order("id ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&messages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return repository.NewPagedResult(messages, total, pagination), nil
}
