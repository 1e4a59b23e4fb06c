// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
)

type TestRepository struct {
	client *Client
}

func NewTestRepository(client *Client) *TestRepository {
	return &TestRepository{client: client}
}

// Create 写入测验及题目（gorm 会级联插入 Questions 关联）
func (r *TestRepository) Create(ctx context.Context, test *entity.Test) error {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(test).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

func (r *TestRepository) GetByID(ctx context.Context, id string) (*entity.Test, error) {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var test entity.Test
	if err := db.Preload("Questions.Question").First(&test, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return &test, nil
}

func (r *TestRepository) GetActive(ctx context.Context, courseID, studentID string) (*entity.Test, error) {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.GetActive")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var test entity.Test
	if err := db.Preload("Questions.Question").
		Where("course_id = ? AND student_id = ? AND submitted_at IS NULL", courseID, studentID).
		Take(&test).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active test: %w", err)
	}
	return &test, nil
}

// SaveAnswers 仅在测验未提交时写入作答
func (r *TestRepository) SaveAnswers(ctx context.Context, testID string, answers map[string]string) error {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.SaveAnswers")
	defer span.End()

	db := getDB(ctx, r.client.db)
	for questionID, answer := range answers {
		err := db.Model(&entity.TestQuestion{}).
			Where("test_id = ? AND question_id = ?", testID, questionID).
			Where("EXISTS (SELECT 1 FROM tests WHERE tests.id = ? AND tests.submitted_at IS NULL)", testID).
			Update("student_answer", answer).Error
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to save answer: %w", err)
		}
	}
	return nil
}

func (r *TestRepository) ApplyGrades(ctx context.Context, testID string, grades []repository.QuestionGrade) error {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.ApplyGrades")
	defer span.End()

	db := getDB(ctx, r.client.db)
	for _, g := range grades {
		err := db.Model(&entity.TestQuestion{}).
			Where("test_id = ? AND question_id = ? AND ai_score IS NULL", testID, g.QuestionID).
			Updates(map[string]any{
				"ai_score":    g.Score,
				"ai_feedback": g.Feedback,
			}).Error
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to apply grade: %w", err)
		}
	}
	return nil
}

func (r *TestRepository) MarkSubmitted(ctx context.Context, testID string, score int, submittedAt time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.MarkSubmitted")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.Test{}).
		Where("id = ? AND submitted_at IS NULL", testID).
		Updates(map[string]any{
			"ai_score":     score,
			"submitted_at": submittedAt,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to mark test submitted: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// testSortColumns 允许用于测验列表排序的列
var testSortColumns = map[string]struct{}{
	"created_at":   {},
	"submitted_at": {},
	"ai_score":     {},
}

func testOrder(sort repository.Sort) (clause.OrderByColumn, error) {
	if _, ok := testSortColumns[sort.Field]; !ok {
		return clause.OrderByColumn{}, fmt.Errorf("unsupported sort field %q", sort.Field)
	}
	return clause.OrderByColumn{Column: clause.Column{Name: sort.Field}, Desc: sort.Desc()}, nil
}

func (r *TestRepository) ListByStudent(ctx context.Context, studentID string, pagination repository.Pagination, sort repository.Sort) (*repository.PagedResult[*entity.Test], error) {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.ListByStudent")
	defer span.End()

	order, err := testOrder(sort)
	if err != nil {
		return nil, err
	}

	db := getDB(ctx, r.client.db)
	var total int64
	if err := db.Model(&entity.Test{}).Where("student_id = ?", studentID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count tests: %w", err)
	}

	var tests []*entity.Test
	if err := db.Preload("Questions").
		Where("student_id = ?", studentID).
		Order(order).
		Order("id ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&tests).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return repository.NewPagedResult(tests, total, pagination), nil
}

func (r *TestRepository) ListSubmittedByCourse(ctx context.Context, courseID string, pagination repository.Pagination, sort repository.Sort) (*repository.PagedResult[*entity.Test], error) {
	ctx, span := tracer.Start(ctx, "postgres.TestRepository.ListSubmittedByCourse")
	defer span.End()

	order, err := testOrder(sort)
	if err != nil {
		return nil, err
	}

	const cond = "course_id = ? AND submitted_at IS NOT NULL AND ai_score IS NOT NULL"
	db := getDB(ctx, r.client.db)
	var total int64
	if err := db.Model(&entity.Test{}).Where(cond, courseID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count submitted tests: %w", err)
	}

	// 同分先提交者靠前
	var tests []*entity.Test
	if err := db.Where(cond, courseID).
		Order(order).
		Order("submitted_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&tests).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list submitted tests: %w", err)
	}
	return repository.NewPagedResult(tests, total, pagination), nil
}
