// Package tutor 章节答疑编排：余额检查、组装提示词、调用模型、持久化回答并计费
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/application/prompt"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	"ai-tutor-api/internal/domain/service"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

const (
	// FallbackAnswer 模型返回空内容时写入的回答
	FallbackAnswer = "I couldn't generate a response."

	maxQuestionChars = 4000
)

// Config 答疑调用参数
type Config struct {
	MaxTokens   int
	Temperature float32
	CallTimeout time.Duration
}

// NewConfig 从应用配置读取答疑参数
func NewConfig(cfg *config.Config) Config {
	return Config{
		MaxTokens:   cfg.Tutor.MaxTokens,
		Temperature: float32(cfg.Tutor.Temperature),
		CallTimeout: cfg.LLM.CallTimeout,
	}
}

type Service struct {
	cfg           Config
	pricing       *pricing.Table
	funds         service.FundsChecker
	meter         service.UsageMeter
	assembler     *prompt.Assembler
	llm           service.LanguageModel
	courses       repository.CourseRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func NewService(
	cfg Config,
	table *pricing.Table,
	funds service.FundsChecker,
	meter service.UsageMeter,
	assembler *prompt.Assembler,
	llm service.LanguageModel,
	courses repository.CourseRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
) *Service {
	return &Service{
		cfg:           cfg,
		pricing:       table,
		funds:         funds,
		meter:         meter,
		assembler:     assembler,
		llm:           llm,
		courses:       courses,
		conversations: conversations,
		messages:      messages,
	}
}

// AnswerInput 对已存在会话的一次答疑
type AnswerInput struct {
	AccountID      string
	ChapterID      string
	ConversationID string
	Question       string
	// Model 计费模型名，空表示默认模型
	Model string
}

// AnswerResult 回答消息及对应的扣费流水；Billed 为 false 表示已回答但计费失败
type AnswerResult struct {
	Message     *entity.Message
	Transaction *entity.LedgerTransaction
	Billed      bool
}

// AnswerQuestion 生成并持久化 AI 回答，落库成功后按实际用量计费。
// 模型调用与其后的持久化、计费不受调用方取消影响。
func (s *Service) AnswerQuestion(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	price, err := s.pricing.Resolve(in.Model)
	if err != nil {
		return nil, err
	}
	if err := s.funds.EnsureFunds(ctx, in.AccountID, service.WorkflowTutor); err != nil {
		return nil, err
	}

	tp, err := s.assembler.AssembleTutorPrompt(ctx, in.ChapterID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	msgs := appendQuestion(tp.Messages, tp.History, in.Question)

	callCtx := context.WithoutCancel(ctx)
	res, err := s.llm.Complete(callCtx, service.CompletionRequest{
		Workflow:      service.WorkflowTutor,
		Model:         price.Model,
		Provider:      price.Provider,
		UpstreamModel: price.UpstreamModel,
		Messages:      msgs,
		MaxTokens:     s.cfg.MaxTokens,
		Temperature:   s.cfg.Temperature,
		Timeout:       s.cfg.CallTimeout,
	})
	if err != nil {
		metrics.TutorAnswersTotal.WithLabelValues(price.Model, "upstream_error").Inc()
		logger.Error(ctx, "tutor llm call failed", err,
			"chapter_id", in.ChapterID,
			"conversation_id", in.ConversationID,
			"model", price.Model,
		)
		return nil, err
	}

	content := strings.TrimSpace(res.Content)
	if content == "" {
		content = FallbackAnswer
	}
	answer := entity.NewAIMessage(in.ConversationID, content, price.Model)
	if err := s.messages.Create(callCtx, answer); err != nil {
		// 回答未落库则不计费
		metrics.TutorAnswersTotal.WithLabelValues(price.Model, "storage_error").Inc()
		logger.Error(ctx, "failed to persist tutor answer", err,
			"conversation_id", in.ConversationID,
			"prompt_tokens", res.PromptTokens,
			"completion_tokens", res.CompletionTokens,
		)
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	tx, meterErr := s.meter.MeterUsage(callCtx, service.LLMUsageInput{
		AccountID:        in.AccountID,
		Workflow:         service.WorkflowTutor,
		Model:            price.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		Notes:            fmt.Sprintf("Question in Chapter \"%s\" of %s", tp.Chapter.Title, tp.Chapter.Course.Title),
	})
	if meterErr != nil {
		logger.Error(ctx, "tutor answer delivered but not billed", meterErr,
			"message_id", answer.ID,
			"prompt_tokens", res.PromptTokens,
			"completion_tokens", res.CompletionTokens,
		)
	}

	status := "success"
	if meterErr != nil {
		status = "unbilled"
	}
	metrics.TutorAnswersTotal.WithLabelValues(price.Model, status).Inc()

	return &AnswerResult{Message: answer, Transaction: tx, Billed: meterErr == nil}, nil
}

// appendQuestion 当前问题不是历史窗口中的最后一条学生消息时追加为 user 消息
func appendQuestion(msgs []*schema.Message, history []*entity.Message, question string) []*schema.Message {
	q := strings.TrimSpace(question)
	if q == "" {
		return msgs
	}
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Sender == entity.MessageSenderStudent && strings.TrimSpace(last.Content) == q {
			return msgs
		}
	}
	return append(msgs, schema.UserMessage(q))
}

// AskInput 学生在章节下提问
type AskInput struct {
	AccountID string
	ChapterID string
	Question  string
	Model     string
}

// AskResult 提问结果
type AskResult struct {
	Conversation *entity.Conversation
	Question     *entity.Message
	Answer       *AnswerResult
}

// Ask 校验章节与选课，获取或创建会话并保存学生消息，然后生成回答
func (s *Service) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("question is required")
	}
	if utf8.RuneCountInString(question) > maxQuestionChars {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("question exceeds %d characters", maxQuestionChars))
	}
	if _, err := s.pricing.Resolve(in.Model); err != nil {
		return nil, err
	}

	chapter, err := s.courses.GetChapterWithCourse(ctx, in.ChapterID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if !chapter.IsAccessible() {
		return nil, apperrors.ErrChapterNotFound.WithDetail("chapter not found or course not published")
	}

	enrolled, err := s.courses.IsEnrolled(ctx, chapter.CourseID, in.AccountID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if !enrolled {
		return nil, apperrors.ErrNotEnrolled.WithDetail("you must be enrolled in this course to ask questions")
	}

	// 余额不足时不落任何数据
	if err := s.funds.EnsureFunds(ctx, in.AccountID, service.WorkflowTutor); err != nil {
		return nil, err
	}

	conversation, err := s.getOrCreateConversation(ctx, in.ChapterID, in.AccountID)
	if err != nil {
		return nil, err
	}

	studentMsg := entity.NewStudentMessage(conversation.ID, question)
	if err := s.messages.Create(ctx, studentMsg); err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	answer, err := s.AnswerQuestion(ctx, AnswerInput{
		AccountID:      in.AccountID,
		ChapterID:      in.ChapterID,
		ConversationID: conversation.ID,
		Question:       question,
		Model:          in.Model,
	})
	if err != nil {
		return nil, err
	}

	return &AskResult{Conversation: conversation, Question: studentMsg, Answer: answer}, nil
}

func (s *Service) getOrCreateConversation(ctx context.Context, chapterID, studentID string) (*entity.Conversation, error) {
	conversation, err := s.conversations.GetByChapterAndStudent(ctx, chapterID, studentID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if conversation != nil {
		return conversation, nil
	}

	conversation = entity.NewConversation(chapterID, studentID)
	err = s.conversations.Create(ctx, conversation)
	if errors.Is(err, repository.ErrDuplicate) {
		// 并发创建，读取胜出的一方
		conversation, err = s.conversations.GetByChapterAndStudent(ctx, chapterID, studentID)
		if err == nil && conversation == nil {
			err = fmt.Errorf("conversation vanished after duplicate insert")
		}
	}
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	return conversation, nil
}

// ListMessages 分页返回学生在章节下的会话消息（正序）；尚无会话时返回空页
func (s *Service) ListMessages(ctx context.Context, accountID, chapterID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Message], error) {
	conversation, err := s.conversations.GetByChapterAndStudent(ctx, chapterID, accountID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if conversation == nil {
		return repository.NewPagedResult([]*entity.Message{}, 0, pagination), nil
	}
	result, err := s.messages.ListByConversation(ctx, conversation.ID, pagination)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	return result, nil
}
