package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TutorTemplateKeepsBracesInValues(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptTutorV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"course_title":       "Go 101",
		"course_description": "Intro",
		"chapter_title":      "Maps",
		"chapter_content":    "m := map[string]int{\"a\": 1}",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "Course: Go 101\nDescription: Intro\n\nChapter: Maps\n\nContent:\nm := map[string]int{\"a\": 1}")
}

func TestRegistry_GradingSystemText(t *testing.T) {
	r := NewRegistry()
	text, err := r.SystemText(PromptGradingV1)
	require.NoError(t, err)
	assert.Contains(t, text, `"questionId"`)

	_, err = r.ChatTemplate(PromptGradingV1)
	assert.Error(t, err)
}
