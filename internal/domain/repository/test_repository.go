// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"ai-tutor-api/internal/domain/entity"
)

// QuestionGrade 单题评分结果
type QuestionGrade struct {
	QuestionID string
	Score      float64
	Feedback   string
}

type TestRepository interface {
	// Create 同时写入测验题目；已有未提交测验时返回 ErrDuplicate
	Create(ctx context.Context, test *entity.Test) error
	// GetByID 读取测验及其题目（预加载题库内容）
	GetByID(ctx context.Context, id string) (*entity.Test, error)
	GetActive(ctx context.Context, courseID, studentID string) (*entity.Test, error)
	SaveAnswers(ctx context.Context, testID string, answers map[string]string) error
	ApplyGrades(ctx context.Context, testID string, grades []QuestionGrade) error
	// MarkSubmitted 仅当测验尚未提交时写入分数与提交时间，返回是否写入成功
	MarkSubmitted(ctx context.Context, testID string, score int, submittedAt time.Time) (bool, error)

	// ListByStudent 学生的全部测验，只预加载题目行用于计数
	ListByStudent(ctx context.Context, studentID string, pagination Pagination, sort Sort) (*PagedResult[*entity.Test], error)
	// ListSubmittedByCourse 课程下已提交且有分数的测验
	ListSubmittedByCourse(ctx context.Context, courseID string, pagination Pagination, sort Sort) (*PagedResult[*entity.Test], error)
}
