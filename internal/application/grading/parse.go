package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"ai-tutor-api/internal/application/prompt"
	wfnode "ai-tutor-api/internal/workflow/node"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

const (
	maxQuestionScore = 10.0
	// MaxScore 测验满分（百分制）
	MaxScore = 100
)

// QuestionResult 单题评分
type QuestionResult struct {
	QuestionID string  `json:"questionId"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

type rawResult struct {
	QuestionID string   `json:"questionId"`
	Score      *float64 `json:"score"`
	Feedback   string   `json:"feedback"`
}

type resultsEnvelope struct {
	Results *[]rawResult `json:"results"`
}

// ParseResults 解析模型输出。接受顶层数组或 {"results": [...]}；
// 未知题目与重复题目被忽略，分数截断到 [0, 10]，缺失的题目保持未评分。
func ParseResults(ctx context.Context, content string, answers []prompt.GradingAnswer) ([]QuestionResult, error) {
	raw := strings.TrimSpace(wfnode.ExtractJSON(content))
	if raw == "" {
		return nil, apperrors.ErrUpstreamInvalidResponse.WithDetail("empty grading response")
	}

	var items []rawResult
	switch raw[0] {
	case '[':
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, apperrors.ErrUpstreamInvalidResponse.WithError(err)
		}
	case '{':
		var env resultsEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, apperrors.ErrUpstreamInvalidResponse.WithError(err)
		}
		if env.Results == nil {
			return nil, apperrors.ErrUpstreamInvalidResponse.WithDetail("grading response has no results array")
		}
		items = *env.Results
	default:
		return nil, apperrors.ErrUpstreamInvalidResponse.WithDetail("grading response is not JSON")
	}

	known := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		known[a.QuestionID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(items))
	results := make([]QuestionResult, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.QuestionID)
		if _, ok := known[id]; !ok {
			logger.Warn(ctx, "grading result for unknown question ignored", "question_id", id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if it.Score == nil {
			logger.Warn(ctx, "grading result without score ignored", "question_id", id)
			continue
		}
		seen[id] = struct{}{}

		score := *it.Score
		if score < 0 || score > maxQuestionScore || math.IsNaN(score) {
			logger.Warn(ctx, "grading score out of range, clamped", "question_id", id, "score", score)
			score = clamp(score)
		}
		results = append(results, QuestionResult{
			QuestionID: id,
			Score:      score,
			Feedback:   strings.TrimSpace(it.Feedback),
		})
	}
	return results, nil
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > maxQuestionScore:
		return maxQuestionScore
	default:
		return score
	}
}

// Percentage round(sum / (questionCount * 10) * 100)；未评分的题目按 0 分计入分母
func Percentage(results []QuestionResult, questionCount int) (int, error) {
	if questionCount <= 0 {
		return 0, fmt.Errorf("question count must be positive")
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return int(math.Round(sum / (float64(questionCount) * maxQuestionScore) * MaxScore)), nil
}
