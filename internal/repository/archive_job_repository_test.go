package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var archiveJobRowColumns = []string{"id", "user_id", "username", "platforms", "status", "processed_items", "total_items", "error_message", "created_at", "completed_at"}

func TestArchiveJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archive_jobs")).
		WithArgs(sqlmock.AnyArg(), "user-1", "alice", []byte(`["ea-forum","lesswrong"]`), "pending", nil, nil, nil, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ArchiveJob{
		UserID:    "user-1",
		Username:  "alice",
		Platforms: models.PlatformList{models.PlatformEAForum, models.PlatformLessWrong},
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.JobStatusPending, job.Status)
	require.False(t, job.CreatedAt.IsZero())

	rows := sqlmock.NewRows(archiveJobRowColumns).
		AddRow(job.ID, "user-1", "alice", `["ea-forum","lesswrong"]`, "pending", nil, nil, nil, job.CreatedAt, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + archiveJobColumns + " FROM archive_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.Equal(t, models.PlatformList{models.PlatformEAForum, models.PlatformLessWrong}, fetched.Platforms)
	require.Nil(t, fetched.TotalItems)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveJobRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM archive_jobs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestArchiveJobRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(archiveJobRowColumns).
		AddRow("job-2", "user-1", "bob", `["lesswrong"]`, "completed", 3, 3, nil, now, now).
		AddRow("job-1", "user-1", "alice", `["ea-forum"]`, "failed", 0, 0, "boom", now.Add(-time.Hour), now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM archive_jobs WHERE user_id = $1 ORDER BY created_at DESC")).
		WithArgs("user-1").
		WillReturnRows(rows)

	jobs, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "job-2", jobs[0].ID)
	require.Equal(t, 3, *jobs[0].TotalItems)
	require.Equal(t, "boom", *jobs[1].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveJobRepositoryListByUserEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM archive_jobs WHERE user_id = $1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(archiveJobRowColumns))

	jobs, err := repo.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, jobs)
	require.Empty(t, jobs)
}

func TestArchiveJobRepositoryListByStatusFirstPage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	rows := sqlmock.NewRows(archiveJobRowColumns).
		AddRow("job-1", "user-1", "alice", `["ea-forum"]`, "pending", nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY created_at ASC, id ASC LIMIT $2")).
		WithArgs(models.JobStatusPending, 50).
		WillReturnRows(rows)

	jobs, err := repo.ListByStatus(context.Background(), models.JobStatusPending, nil, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveJobRepositoryListByStatusAfterCursor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	cursor := &JobCursor{CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), ID: "job-9"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND (created_at, id) > ($2, $3) ORDER BY created_at ASC, id ASC LIMIT $4")).
		WithArgs(models.JobStatusRunning, cursor.CreatedAt, cursor.ID, 25).
		WillReturnRows(sqlmock.NewRows(archiveJobRowColumns))

	jobs, err := repo.ListByStatus(context.Background(), models.JobStatusRunning, cursor, 25)
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveJobRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	now := time.Now()
	total := 5
	mock.ExpectExec(regexp.QuoteMeta("UPDATE archive_jobs SET status = $1, processed_items = $2, total_items = $3, completed_at = $4 WHERE id = $5 AND status = $6")).
		WithArgs(models.JobStatusCompleted, total, total, now, "job-1", models.JobStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "job-1", TransitionParams{
		From:           models.JobStatusRunning,
		To:             models.JobStatusCompleted,
		ProcessedItems: &total,
		TotalItems:     &total,
		CompletedAt:    &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveJobRepositoryTransitionStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchiveJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE archive_jobs SET status = $1 WHERE id = $2 AND status = $3")).
		WithArgs(models.JobStatusRunning, "job-1", models.JobStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), "job-1", TransitionParams{From: models.JobStatusPending, To: models.JobStatusRunning})
	require.True(t, errors.Is(err, ErrStaleTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}
