package node

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`[{"questionId":"q1","score":7}]`:                      `[{"questionId":"q1","score":7}]`,
		"```json\n{\"results\":[]}\n```":                       `{"results":[]}`,
		`Here you go: [{"questionId":"q1"}] hope this helps.`: `[{"questionId":"q1"}]`,
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractJSON(in), in)
	}
	assert.Equal(t, "not json", ExtractJSON("  not json "))
}

func TestTruncateByRunes(t *testing.T) {
	s := strings.Repeat("学", 600)
	out := TruncateByRunes(s, 500)
	assert.Equal(t, 500, utf8.RuneCountInString(out))
	assert.Equal(t, "abc", TruncateByRunes("abc", 500))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
	assert.Equal(t, "学a", TruncateByRunes("学a学", 2))
}

func TestClipForLog(t *testing.T) {
	assert.Equal(t, "short", ClipForLog("  short \n", 10))
	assert.Equal(t, "abc…(+2 chars)", ClipForLog("abcde", 3))
	assert.Equal(t, "评分…(+1 chars)", ClipForLog(" 评分失 ", 2))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("400: Unknown parameter 'response_format'")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("context deadline exceeded")))
	assert.False(t, IsResponseFormatUnsupportedError(nil))
}
