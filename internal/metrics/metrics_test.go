package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder("test")

	r.ObserveStage("summary", OutcomeReady, 10*time.Millisecond)
	r.ObserveStage("summary", OutcomeReady, 20*time.Millisecond)
	r.ObserveStage("visualization", OutcomeStale, time.Millisecond)
	r.ObserveUpload(UploadFailed)

	assert.Equal(t, 2.0, r.StageCount("summary", OutcomeReady))
	assert.Equal(t, 1.0, r.StageCount("visualization", OutcomeStale))
	assert.Equal(t, 0.0, r.StageCount("summary", OutcomeFailed))
	assert.Equal(t, 1.0, r.UploadCount(UploadFailed))
	assert.Equal(t, 0.0, r.UploadCount(UploadSucceeded))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveStage("summary", OutcomeReady, time.Second)
	r.ObserveUpload(UploadSucceeded)
	r.ObserveHTTP("/upload", 200)

	assert.Nil(t, r.Registry())
	assert.Zero(t, r.StageCount("summary", OutcomeReady))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := NewRecorder("explorer")
	r.ObserveHTTP("/upload", 200)
	r.ObserveStage("summary", OutcomeFailed, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `explorer_http_requests_total{code="200",route="/upload"} 1`)
	assert.Contains(t, string(body), `explorer_stage_requests_total{outcome="failed",stage="summary"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
