package grading

import (
	"context"
	"time"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	apperrors "ai-tutor-api/pkg/errors"
)

var (
	myTestsSort     = repository.NewSort("created_at", repository.SortOrderDesc)
	leaderboardSort = repository.NewSort("ai_score", repository.SortOrderDesc)
)

// GetTest 读取学生自己的测验
func (s *Service) GetTest(ctx context.Context, studentID, testID string) (*entity.Test, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if test == nil {
		return nil, apperrors.ErrTestNotFound.WithDetail(testID)
	}
	if !test.IsOwnedBy(studentID) {
		return nil, apperrors.ErrForbidden.WithDetail("this is not your test")
	}
	return test, nil
}

// ListMyTests 学生的测验，最新创建的在前
func (s *Service) ListMyTests(ctx context.Context, studentID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Test], error) {
	result, err := s.tests.ListByStudent(ctx, studentID, pagination, myTestsSort)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	return result, nil
}

// LeaderboardEntry 排行榜条目，Rank 从 1 开始并跨页连续
type LeaderboardEntry struct {
	Rank        int
	TestID      string
	StudentID   string
	Score       int
	SubmittedAt time.Time
}

// Leaderboard 课程下已评分测验按分数降序排列
func (s *Service) Leaderboard(ctx context.Context, courseID string, pagination repository.Pagination) (*repository.PagedResult[LeaderboardEntry], error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if course == nil || !course.IsPublished {
		return nil, apperrors.ErrNotFound.WithDetail("course not found or not published")
	}

	result, err := s.tests.ListSubmittedByCourse(ctx, courseID, pagination, leaderboardSort)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	entries := make([]LeaderboardEntry, 0, len(result.Items))
	for i, t := range result.Items {
		entry := LeaderboardEntry{
			Rank:      pagination.Offset() + i + 1,
			TestID:    t.ID,
			StudentID: t.StudentID,
		}
		if t.AIScore != nil {
			entry.Score = *t.AIScore
		}
		if t.SubmittedAt != nil {
			entry.SubmittedAt = *t.SubmittedAt
		}
		entries = append(entries, entry)
	}
	return repository.NewPagedResult(entries, result.Total, pagination), nil
}
