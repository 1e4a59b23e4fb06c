package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/domain/repository"
)

func TestTestRepository_MarkSubmittedOnlyOnce(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewTestRepository(client)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tests" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tests" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	ok, err := repo.MarkSubmitted(ctx, "t-1", 80, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSubmitted(ctx, "t-1", 90, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_IsEnrolled(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewCourseRepository(client)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "enrollments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.IsEnrolled(context.Background(), "c-1", "s-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepository_ListSubmittedByCourseOrdersByScore(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewTestRepository(client)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "tests" WHERE course_id = $1 AND submitted_at IS NOT NULL AND ai_score IS NOT NULL`)).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "tests" WHERE course_id = \$1 AND submitted_at IS NOT NULL AND ai_score IS NOT NULL ORDER BY "ai_score" DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "student_id", "ai_score", "submitted_at", "created_at"}).
			AddRow("t-1", "c-1", "s-1", 90, at, at).
			AddRow("t-2", "c-1", "s-2", 60, at, at))

	result, err := repo.ListSubmittedByCourse(context.Background(), "c-1",
		repository.NewPagination(1, 10), repository.NewSort("ai_score", repository.SortOrderDesc))
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 90, *result.Items[0].AIScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepository_ListByStudentPreloadsQuestions(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewTestRepository(client)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "tests" WHERE student_id = $1`)).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "tests" WHERE student_id = \$1 ORDER BY "created_at" DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "student_id", "ai_score", "submitted_at", "created_at"}).
			AddRow("t-1", "c-1", "s-1", nil, nil, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "test_questions" WHERE "test_questions"."test_id" = $1`)).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"test_id", "question_id"}).
			AddRow("t-1", "q-1").
			AddRow("t-1", "q-2"))

	result, err := repo.ListByStudent(context.Background(), "s-1",
		repository.NewPagination(1, 20), repository.NewSort("created_at", repository.SortOrderDesc))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Len(t, result.Items[0].Questions, 2)
	assert.False(t, result.Items[0].IsSubmitted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepository_RejectsUnknownSortField(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewTestRepository(client)

	_, err := repo.ListByStudent(context.Background(), "s-1",
		repository.NewPagination(1, 20), repository.NewSort("id; DROP TABLE tests", repository.SortOrderAsc))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
