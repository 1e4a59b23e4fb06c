package dto

import (
	"time"

	"ai-tutor-api/internal/application/grading"
	"ai-tutor-api/internal/domain/entity"
)

// SubmitTestRequest 提交测验请求
type SubmitTestRequest struct {
	Answers []SubmitAnswer `json:"answers"`
	Model   string         `json:"model,omitempty"`
}

type SubmitAnswer struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

func (r *SubmitTestRequest) ToSubmissions() []grading.AnswerSubmission {
	out := make([]grading.AnswerSubmission, 0, len(r.Answers))
	for _, a := range r.Answers {
		out = append(out, grading.AnswerSubmission{QuestionID: a.QuestionID, StudentAnswer: a.Answer})
	}
	return out
}

// TestQuestionResponse 测验题目。参考答案、评分与反馈只在提交后返回。
type TestQuestionResponse struct {
	QuestionID    string   `json:"question_id"`
	Question      string   `json:"question"`
	StudentAnswer *string  `json:"student_answer,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
	AIScore       *float64 `json:"ai_score,omitempty"`
	AIFeedback    *string  `json:"ai_feedback,omitempty"`
}

// TestResponse 测验详情
type TestResponse struct {
	ID          string                  `json:"id"`
	CourseID    string                  `json:"course_id"`
	AIScore     *int                    `json:"ai_score,omitempty"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	Questions   []*TestQuestionResponse `json:"questions"`
}

// SubmitTestResponse 评分结果
type SubmitTestResponse struct {
	Test       *TestResponse `json:"test"`
	TotalScore int           `json:"total_score"`
	MaxScore   int           `json:"max_score"`
	Cost       string        `json:"cost,omitempty"`
	Billed     bool          `json:"billed"`
}

func ToTestResponse(t *entity.Test) *TestResponse {
	if t == nil {
		return nil
	}
	resp := &TestResponse{
		ID:          t.ID,
		CourseID:    t.CourseID,
		AIScore:     t.AIScore,
		SubmittedAt: t.SubmittedAt,
		CreatedAt:   t.CreatedAt,
		Questions:   make([]*TestQuestionResponse, 0, len(t.Questions)),
	}
	submitted := t.IsSubmitted()
	for _, q := range t.Questions {
		item := &TestQuestionResponse{
			QuestionID:    q.QuestionID,
			StudentAnswer: q.StudentAnswer,
		}
		if submitted {
			item.AIScore = q.AIScore
			item.AIFeedback = q.AIFeedback
		}
		if q.Question != nil {
			item.Question = q.Question.Question
			if submitted {
				item.CorrectAnswer = q.Question.Answer
				item.Explanation = q.Question.Explanation
			}
		}
		resp.Questions = append(resp.Questions, item)
	}
	return resp
}

// TestSummaryResponse 测验列表项
type TestSummaryResponse struct {
	ID            string     `json:"id"`
	CourseID      string     `json:"course_id"`
	AIScore       *int       `json:"ai_score,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	QuestionCount int        `json:"question_count"`
}

func ToTestSummaryList(items []*entity.Test) []*TestSummaryResponse {
	out := make([]*TestSummaryResponse, 0, len(items))
	for _, t := range items {
		out = append(out, &TestSummaryResponse{
			ID:            t.ID,
			CourseID:      t.CourseID,
			AIScore:       t.AIScore,
			SubmittedAt:   t.SubmittedAt,
			CreatedAt:     t.CreatedAt,
			QuestionCount: len(t.Questions),
		})
	}
	return out
}

// LeaderboardEntryResponse 排行榜条目
type LeaderboardEntryResponse struct {
	Rank        int       `json:"rank"`
	TestID      string    `json:"test_id"`
	StudentID   string    `json:"student_id"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func ToLeaderboard(items []grading.LeaderboardEntry) []*LeaderboardEntryResponse {
	out := make([]*LeaderboardEntryResponse, 0, len(items))
	for _, e := range items {
		out = append(out, &LeaderboardEntryResponse{
			Rank:        e.Rank,
			TestID:      e.TestID,
			StudentID:   e.StudentID,
			Score:       e.Score,
			SubmittedAt: e.SubmittedAt,
		})
	}
	return out
}

func ToSubmitTestResponse(r *grading.SubmitResult) *SubmitTestResponse {
	resp := &SubmitTestResponse{
		Test:       ToTestResponse(r.Test),
		TotalScore: r.Grade.TotalScore,
		MaxScore:   r.Grade.MaxScore,
		Billed:     r.Grade.Billed,
	}
	if tx := r.Grade.Transaction; tx != nil {
		resp.Cost = tx.Amount.Neg().String()
	}
	return resp
}
