package dto

import (
	"time"

	"ai-tutor-api/internal/application/tutor"
	"ai-tutor-api/internal/domain/entity"
)

// AskRequest 章节答疑请求
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Model    string `json:"model,omitempty"`
}

// MessageResponse 对话消息
type MessageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AskResponse 答疑响应
type AskResponse struct {
	ConversationID string           `json:"conversation_id"`
	Question       *MessageResponse `json:"question"`
	Answer         *MessageResponse `json:"answer"`
	Cost           string           `json:"cost,omitempty"`
	Billed         bool             `json:"billed"`
}

func ToMessageResponse(m *entity.Message) *MessageResponse {
	if m == nil {
		return nil
	}
	resp := &MessageResponse{
		ID:        m.ID,
		Sender:    string(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Model != nil {
		resp.Model = *m.Model
	}
	return resp
}

func ToMessageList(items []*entity.Message) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(items))
	for _, m := range items {
		out = append(out, ToMessageResponse(m))
	}
	return out
}

func ToAskResponse(r *tutor.AskResult) *AskResponse {
	resp := &AskResponse{
		ConversationID: r.Conversation.ID,
		Question:       ToMessageResponse(r.Question),
		Answer:         ToMessageResponse(r.Answer.Message),
		Billed:         r.Answer.Billed,
	}
	if tx := r.Answer.Transaction; tx != nil {
		resp.Cost = tx.Amount.Neg().String()
	}
	return resp
}
