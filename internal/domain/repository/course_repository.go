// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-tutor-api/internal/domain/entity"
)

// CourseRepository 课程目录只读访问
type CourseRepository interface {
	// GetChapterWithCourse 读取章节并预加载所属课程
	GetChapterWithCourse(ctx context.Context, chapterID string) (*entity.Chapter, error)
	GetCourse(ctx context.Context, courseID string) (*entity.Course, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	ListQuestionIDs(ctx context.Context, courseID string) ([]string, error)
}
