// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"ai-tutor-api/internal/domain/entity"
)

// CourseRepository 课程目录只读仓储
type CourseRepository struct {
	client *Client
}

func NewCourseRepository(client *Client) *CourseRepository {
	return &CourseRepository{client: client}
}

func (r *CourseRepository) GetChapterWithCourse(ctx context.Context, chapterID string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.CourseRepository.GetChapterWithCourse")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.Preload("Course").First(&chapter, "id = ?", chapterID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

func (r *CourseRepository) GetCourse(ctx context.Context, courseID string) (*entity.Course, error) {
	ctx, span := tracer.Start(ctx, "postgres.CourseRepository.GetCourse")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var course entity.Course
	if err := db.First(&course, "id = ?", courseID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &course, nil
}

func (r *CourseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.CourseRepository.IsEnrolled")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

func (r *CourseRepository) ListQuestionIDs(ctx context.Context, courseID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.CourseRepository.ListQuestionIDs")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var ids []string
	if err := db.Model(&entity.Question{}).
		Where("course_id = ?", courseID).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list question ids: %w", err)
	}
	return ids, nil
}
