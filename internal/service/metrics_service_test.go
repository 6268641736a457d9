package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

func TestMetricsServiceExposesArchiveCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/archives/jobs", http.StatusAccepted, 10*time.Millisecond)
	m.ObserveJob(models.JobStatusCompleted, 2*time.Second)
	m.AddItemsFetched(models.PlatformLessWrong, 4)
	m.AddItemsFetched(models.PlatformEAForum, 0)
	m.ObserveUpstream(models.PlatformLessWrong, "posts", "ok", 50*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	assert.Contains(t, text, `archive_jobs_total{status="completed"} 1`)
	assert.Contains(t, text, `archive_items_fetched_total{platform="lesswrong"} 4`)
	assert.NotContains(t, text, `archive_items_fetched_total{platform="ea-forum"}`)
	assert.Contains(t, text, `archive_upstream_request_duration_seconds_count{operation="posts",outcome="ok",platform="lesswrong"} 1`)
	assert.Contains(t, text, `http_requests_total{method="POST",path="/api/v1/archives/jobs",status="202"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveJob(models.JobStatusFailed, time.Second)
	m.ObserveUpstream(models.PlatformEAForum, "user", "ok", time.Second)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
