package prompt

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/testutil/memrepo"
	workflowprompt "ai-tutor-api/internal/workflow/prompt"
	apperrors "ai-tutor-api/pkg/errors"
)

func newTestAssembler(store *memrepo.Store) *Assembler {
	return NewAssembler(
		memrepo.CourseRepository{Store: store},
		memrepo.MessageRepository{Store: store},
		workflowprompt.NewRegistry(),
		nil,
	)
}

func seedChapter(store *memrepo.Store) {
	store.AddCourse(&entity.Course{ID: "course-1", Title: "Go Basics", Description: "Learn Go", IsPublished: true})
	store.AddChapter(&entity.Chapter{ID: "ch-1", CourseID: "course-1", Title: "Slices", Content: strings.Repeat("slice ", 2000), IsPublished: true})
}

func TestAssembleTutorPrompt_HistoryWindow(t *testing.T) {
	store := memrepo.NewStore()
	seedChapter(store)

	base := time.Now()
	for i := 0; i < 15; i++ {
		sender := entity.MessageSenderStudent
		if i%2 == 1 {
			sender = entity.MessageSenderAI
		}
		store.Messages = append(store.Messages, &entity.Message{
			ID:             fmt.Sprintf("m-%02d", i),
			ConversationID: "conv-1",
			Sender:         sender,
			Content:        fmt.Sprintf("%02d:", i) + strings.Repeat("x", 800),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}

	out, err := newTestAssembler(store).AssembleTutorPrompt(context.Background(), "ch-1", "conv-1")
	require.NoError(t, err)

	require.Len(t, out.Messages, 12)
	assert.Equal(t, schema.System, out.Messages[0].Role)
	assert.Equal(t, schema.System, out.Messages[1].Role)

	history := out.Messages[2:]
	for i, m := range history {
		assert.True(t, strings.HasPrefix(m.Content, fmt.Sprintf("%02d:", i)), "message %d out of order", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(m.Content), 500)
		if i%2 == 1 {
			assert.Equal(t, schema.Assistant, m.Role)
		} else {
			assert.Equal(t, schema.User, m.Role)
		}
	}
}

func TestAssembleTutorPrompt_FullChapterContent(t *testing.T) {
	store := memrepo.NewStore()
	seedChapter(store)

	out, err := newTestAssembler(store).AssembleTutorPrompt(context.Background(), "ch-1", "conv-empty")
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)

	ctxMsg := out.Messages[1].Content
	assert.True(t, strings.HasPrefix(ctxMsg, "Course: Go Basics\nDescription: Learn Go\n\nChapter: Slices\n\nContent:\n"))
	assert.Contains(t, ctxMsg, strings.TrimSpace(strings.Repeat("slice ", 2000)))
	assert.Equal(t, "Slices", out.Chapter.Title)
}

func TestAssembleTutorPrompt_MissingChapter(t *testing.T) {
	store := memrepo.NewStore()
	_, err := newTestAssembler(store).AssembleTutorPrompt(context.Background(), "missing", "conv-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterNotFound))
}

func TestFormatGradingAnswers(t *testing.T) {
	explanation := "Slices share backing arrays."
	text := FormatGradingAnswers([]GradingAnswer{
		{QuestionID: "q1", Question: "What is len?", CorrectAnswer: "Number of elements", StudentAnswer: "element count"},
		{QuestionID: "q2", Question: "Do slices copy?", CorrectAnswer: "No", Explanation: &explanation},
	})

	want := "Question 1 (questionId: q1): What is len?\nCorrect Answer: Number of elements\nStudent Answer: element count\n" +
		"\n---\n" +
		"Question 2 (questionId: q2): Do slices copy?\nCorrect Answer: No\nExplanation: Slices share backing arrays.\nStudent Answer: No answer provided\n"
	assert.Equal(t, want, text)
}

func TestAssembleGradingPrompt(t *testing.T) {
	a := newTestAssembler(memrepo.NewStore())
	system, user, err := a.AssembleGradingPrompt([]GradingAnswer{{QuestionID: "q1", Question: "Q", CorrectAnswer: "A", StudentAnswer: "A"}})
	require.NoError(t, err)
	assert.Contains(t, system, "questionId")
	assert.Contains(t, user, "Question 1 (questionId: q1): Q")
}
