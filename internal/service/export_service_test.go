package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/dto"
	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
)

func seededExport(t *testing.T) (*ExportService, string) {
	t.Helper()
	store := newMemJobStore()
	items := newMemItemStore()
	id := createPending(t, store, models.PlatformLessWrong)

	title := `Hello, "world"`
	parent := "Parent post"
	score := 12.5
	zero := 0.0
	require.NoError(t, items.InsertBatch(context.Background(), id, 0, []models.ArchivedItem{
		{Platform: models.PlatformLessWrong, ContentType: models.ContentTypePost, Title: &title, Content: "line\nbreak", URL: "https://www.lesswrong.com/posts/h", DatePosted: "2024-01-01", Score: &score, WordCount: 2, Username: "alice"},
		{Platform: models.PlatformLessWrong, ContentType: models.ContentTypeComment, Content: "ok", DatePosted: "2024-01-02", Score: &zero, ParentTitle: &parent, WordCount: 1, Username: "alice"},
	}))
	return NewExportService(store, items, nil, nil, nil), id
}

func TestExportServiceCSV(t *testing.T) {
	svc, id := seededExport(t)

	result, err := svc.Export(context.Background(), alice, id, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	want := "platform,content_type,title,content,url,date_posted,score,parent_title,word_count,username\n" +
		"lesswrong,post,\"Hello, \"\"world\"\"\",\"line\nbreak\",https://www.lesswrong.com/posts/h,2024-01-01,12.5,,2,alice\n" +
		"lesswrong,comment,,ok,,2024-01-02,0,Parent post,1,alice"
	assert.Equal(t, want, string(result.Data))
}

func TestExportServicePDF(t *testing.T) {
	svc, id := seededExport(t)

	result, err := svc.Export(context.Background(), alice, id, dto.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "archive-"+id+".pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
}

func TestExportServiceRejectsNonOwner(t *testing.T) {
	svc, id := seededExport(t)

	_, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "intruder"}, id, dto.ExportFormatCSV)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Equal(t, http.StatusForbidden, appErr.Status)

	_, err = svc.Export(context.Background(), nil, id, dto.ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestExportServiceErrors(t *testing.T) {
	svc, id := seededExport(t)

	_, err := svc.Export(context.Background(), alice, "missing", dto.ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Export(context.Background(), alice, id, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCSVDatasetEmptyJobHasHeaderOnly(t *testing.T) {
	data := CSVDataset(nil)
	assert.Equal(t, ArchiveCSVHeaders, data.Headers)
	assert.Empty(t, data.Rows)
}
