// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// MessageSender 消息发送方
type MessageSender string

const (
	MessageSenderStudent MessageSender = "STUDENT"
	MessageSenderAI      MessageSender = "AI"
)

// Conversation 学生在某个章节下与 AI 助教的会话，(chapter_id, student_id) 唯一
type Conversation struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	ChapterID string    `json:"chapter_id" gorm:"type:uuid;not null;uniqueIndex:idx_conversations_chapter_student,priority:1"`
	StudentID string    `json:"student_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_conversations_chapter_student,priority:2"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func NewConversation(chapterID, studentID string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		ChapterID: chapterID,
		StudentID: studentID,
		CreatedAt: time.Now(),
	}
}

// Message 会话消息，创建后不可修改；按 created_at 排序即为对话历史
type Message struct {
	ID             string        `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID string        `json:"conversation_id" gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	Sender         MessageSender `json:"sender" gorm:"type:varchar(16);not null"`
	Content        string        `json:"content" gorm:"type:text;not null"`
	Model          *string       `json:"model,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time     `json:"created_at" gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

func NewStudentMessage(conversationID, content string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         MessageSenderStudent,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func NewAIMessage(conversationID, content, model string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         MessageSenderAI,
		Content:        content,
		Model:          &model,
		CreatedAt:      time.Now(),
	}
}

// ChatRole 将发送方映射为模型对话角色
func (m *Message) ChatRole() Role {
	if m.Sender == MessageSenderAI {
		return RoleAssistant
	}
	return RoleUser
}
