// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Test 学生在某门课程下的一次测验；submitted_at 写入后不可再变更。
// 同一 (course_id, student_id) 同时只允许一份未提交的测验（部分唯一索引）。
type Test struct {
	ID          string     `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID    string     `json:"course_id" gorm:"type:uuid;not null;uniqueIndex:idx_tests_active,priority:1,where:submitted_at IS NULL"`
	StudentID   string     `json:"student_id" gorm:"type:varchar(64);not null;index;uniqueIndex:idx_tests_active,priority:2,where:submitted_at IS NULL"`
	AIScore     *int       `json:"ai_score,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`

	Questions []*TestQuestion `json:"questions,omitempty" gorm:"foreignKey:TestID"`
}

func (Test) TableName() string {
	return "tests"
}

// NewTest 创建测验，题目集合在创建时确定
func NewTest(courseID, studentID string, questionIDs []string) *Test {
	t := &Test{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		StudentID: studentID,
		CreatedAt: time.Now(),
	}
	t.Questions = make([]*TestQuestion, 0, len(questionIDs))
	for _, qid := range questionIDs {
		t.Questions = append(t.Questions, &TestQuestion{TestID: t.ID, QuestionID: qid})
	}
	return t
}

func (t *Test) IsSubmitted() bool {
	return t.SubmittedAt != nil
}

func (t *Test) IsOwnedBy(studentID string) bool {
	return t.StudentID == studentID
}

// TestQuestion 测验中的一道题；student_answer 仅提交前可写，ai_score/ai_feedback 仅评分时写一次
type TestQuestion struct {
	TestID        string   `json:"test_id" gorm:"type:uuid;primaryKey"`
	QuestionID    string   `json:"question_id" gorm:"type:uuid;primaryKey"`
	StudentAnswer *string  `json:"student_answer,omitempty" gorm:"type:text"`
	AIScore       *float64 `json:"ai_score,omitempty" gorm:"type:numeric(4,2)"`
	AIFeedback    *string  `json:"ai_feedback,omitempty" gorm:"type:text"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

// IsGraded 是否已有评分
func (q *TestQuestion) IsGraded() bool {
	return q.AIScore != nil
}
