package grading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	apperrors "ai-tutor-api/pkg/errors"
)

func submittedTest(id, studentID string, score int, at time.Time) *entity.Test {
	t := entity.NewTest("course-1", studentID, []string{"q1", "q2"})
	t.ID = id
	s, when := score, at
	t.AIScore = &s
	t.SubmittedAt = &when
	return t
}

func TestLeaderboard_RanksAcrossPages(t *testing.T) {
	f := newFixture(t, 2, 2)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.store.Tests["t-a"] = submittedTest("t-a", "stu-a", 60, base)
	f.store.Tests["t-b"] = submittedTest("t-b", "stu-b", 90, base.Add(time.Minute))
	// 同分时先提交者排前
	f.store.Tests["t-c"] = submittedTest("t-c", "stu-c", 90, base)
	f.store.Tests["t-open"] = entity.NewTest("course-1", "stu-d", []string{"q1"})

	ctx := context.Background()
	first, err := f.svc.Leaderboard(ctx, "course-1", repository.NewPagination(1, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.Total)
	require.Len(t, first.Items, 2)
	assert.Equal(t, LeaderboardEntry{Rank: 1, TestID: "t-c", StudentID: "stu-c", Score: 90, SubmittedAt: base}, first.Items[0])
	assert.Equal(t, "t-b", first.Items[1].TestID)
	assert.Equal(t, 2, first.Items[1].Rank)

	second, err := f.svc.Leaderboard(ctx, "course-1", repository.NewPagination(2, 2))
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 3, second.Items[0].Rank)
	assert.Equal(t, "t-a", second.Items[0].TestID)

	_, err = f.svc.Leaderboard(ctx, "missing", repository.NewPagination(1, 10))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestGetTestAndListMyTests(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	older := submittedTest("t-old", "stu-1", 70, time.Now().Add(-time.Hour))
	older.CreatedAt = time.Now().Add(-2 * time.Hour)
	f.store.Tests[older.ID] = older
	active, _, err := f.svc.StartTest(ctx, "stu-1", "course-1")
	require.NoError(t, err)

	got, err := f.svc.GetTest(ctx, "stu-1", active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	require.Len(t, got.Questions, 2)
	assert.NotNil(t, got.Questions[0].Question)

	_, err = f.svc.GetTest(ctx, "someone-else", active.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	_, err = f.svc.GetTest(ctx, "stu-1", "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTestNotFound))

	mine, err := f.svc.ListMyTests(ctx, "stu-1", repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 2, mine.Total)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, active.ID, mine.Items[0].ID)
	assert.Equal(t, "t-old", mine.Items[1].ID)

	none, err := f.svc.ListMyTests(ctx, "stu-9", repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}
