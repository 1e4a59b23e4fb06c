// Package prompt 组装答疑与评分所需的模型消息
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	wfnode "ai-tutor-api/internal/workflow/node"
	workflowprompt "ai-tutor-api/internal/workflow/prompt"
	apperrors "ai-tutor-api/pkg/errors"
)

const (
	defaultHistoryLimit        = 10
	defaultHistoryMessageChars = 500
	noAnswerPlaceholder        = "No answer provided"
)

// Assembler 提示词组装器，只读访问课程目录与会话消息
type Assembler struct {
	courses      repository.CourseRepository
	messages     repository.MessageRepository
	registry     *workflowprompt.Registry
	historyLimit int
	historyChars int
}

func NewAssembler(courses repository.CourseRepository, messages repository.MessageRepository, registry *workflowprompt.Registry, cfg *config.Config) *Assembler {
	a := &Assembler{
		courses:      courses,
		messages:     messages,
		registry:     registry,
		historyLimit: defaultHistoryLimit,
		historyChars: defaultHistoryMessageChars,
	}
	if cfg != nil {
		if cfg.Tutor.HistoryLimit > 0 {
			a.historyLimit = cfg.Tutor.HistoryLimit
		}
		if cfg.Tutor.HistoryMessageChars > 0 {
			a.historyChars = cfg.Tutor.HistoryMessageChars
		}
	}
	return a
}

// TutorPrompt 组装结果
type TutorPrompt struct {
	Messages []*schema.Message
	Chapter  *entity.Chapter
	// History 参与组装的原始消息（未截断）
	History []*entity.Message
}

// AssembleTutorPrompt 依次输出：答疑指令、课程上下文、会话最早的若干条消息
func (a *Assembler) AssembleTutorPrompt(ctx context.Context, chapterID, conversationID string) (*TutorPrompt, error) {
	chapter, err := a.courses.GetChapterWithCourse(ctx, chapterID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if chapter == nil || chapter.Course == nil {
		return nil, apperrors.ErrChapterNotFound.WithDetail(chapterID)
	}

	tpl, err := a.registry.ChatTemplate(workflowprompt.PromptTutorV1)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithError(err)
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"course_title":       chapter.Course.Title,
		"course_description": chapter.Course.Description,
		"chapter_title":      chapter.Title,
		"chapter_content":    chapter.Content,
	})
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithError(fmt.Errorf("format tutor prompt: %w", err))
	}

	history, err := a.messages.ListEarliest(ctx, conversationID, a.historyLimit)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	for _, m := range history {
		msgs = append(msgs, historyMessage(m, a.historyChars))
	}

	return &TutorPrompt{Messages: msgs, Chapter: chapter, History: history}, nil
}

func historyMessage(m *entity.Message, maxChars int) *schema.Message {
	content := wfnode.TruncateByRunes(m.Content, maxChars)
	if m.ChatRole() == entity.RoleAssistant {
		return schema.AssistantMessage(content, nil)
	}
	return schema.UserMessage(content)
}

// GradingAnswer 评分所需的单题数据
type GradingAnswer struct {
	QuestionID    string
	Question      string
	CorrectAnswer string
	Explanation   *string
	StudentAnswer string
}

// AssembleGradingPrompt 返回评分的 system 与 user 文本，题目按输入顺序编号
func (a *Assembler) AssembleGradingPrompt(answers []GradingAnswer) (system string, user string, err error) {
	system, err = a.registry.SystemText(workflowprompt.PromptGradingV1)
	if err != nil {
		return "", "", apperrors.ErrConfiguration.WithError(err)
	}
	return system, FormatGradingAnswers(answers), nil
}

// FormatGradingAnswers 每题一段，段间以 --- 分隔
func FormatGradingAnswers(answers []GradingAnswer) string {
	blocks := make([]string, 0, len(answers))
	for i, ans := range answers {
		var b strings.Builder
		fmt.Fprintf(&b, "Question %d (questionId: %s): %s\n", i+1, ans.QuestionID, ans.Question)
		fmt.Fprintf(&b, "Correct Answer: %s\n", ans.CorrectAnswer)
		if ans.Explanation != nil && strings.TrimSpace(*ans.Explanation) != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", *ans.Explanation)
		}
		studentAnswer := ans.StudentAnswer
		if strings.TrimSpace(studentAnswer) == "" {
			studentAnswer = noAnswerPlaceholder
		}
		fmt.Fprintf(&b, "Student Answer: %s\n", studentAnswer)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n---\n")
}
