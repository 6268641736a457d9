package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

func TestArchivedItemRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchivedItemRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archived_items")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	items := []models.ArchivedItem{
		{Platform: models.PlatformLessWrong, ContentType: models.ContentTypePost, Content: "a", OriginalID: "p1"},
		{Platform: models.PlatformLessWrong, ContentType: models.ContentTypeComment, Content: "b", OriginalID: "c1"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), "job-1", 3, items))
	require.Equal(t, 3, items[0].Position)
	require.Equal(t, 4, items[1].Position)
	require.Equal(t, "job-1", items[1].JobID)
	require.NotEmpty(t, items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchivedItemRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchivedItemRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), "job-1", 0, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchivedItemRepositoryInsertBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchivedItemRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archived_items")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), "job-1", 0, []models.ArchivedItem{{OriginalID: "p1"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchivedItemRepositoryListByJob(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewArchivedItemRepository(db)

	rows := sqlmock.NewRows([]string{"id", "job_id", "position", "platform", "content_type", "title", "content", "url", "date_posted", "score", "parent_title", "word_count", "username", "original_id", "created_at"}).
		AddRow("i1", "job-1", 0, "ea-forum", "post", "Hello", "body", "https://x/p", "2024-01-01", 4.5, nil, 1, "alice", "p1", time.Now()).
		AddRow("i2", "job-1", 1, "ea-forum", "comment", nil, "reply", "", "2024-01-02", nil, "Hello", 1, "alice", "c1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM archived_items WHERE job_id = $1 ORDER BY position ASC")).
		WithArgs("job-1").
		WillReturnRows(rows)

	items, err := repo.ListByJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Hello", *items[0].Title)
	require.Equal(t, 4.5, *items[0].Score)
	require.Nil(t, items[1].Title)
	require.Equal(t, "Hello", *items[1].ParentTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}
