package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpinel/docugraph/internal/assistant"
	"github.com/vpinel/docugraph/internal/config"
	"github.com/vpinel/docugraph/internal/ingest"
	"github.com/vpinel/docugraph/internal/jobs"
	"github.com/vpinel/docugraph/internal/progress"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeRunner struct {
	started chan struct {
		jobID    string
		filename string
		path     string
	}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan struct {
		jobID    string
		filename string
		path     string
	}, 1)}
}

func (r *fakeRunner) Run(_ context.Context, jobID, filename, path string) (ingest.Result, error) {
	r.started <- struct {
		jobID    string
		filename string
		path     string
	}{jobID, filename, path}
	return ingest.Result{}, nil
}

type fakeAsker struct {
	answer assistant.Answer
	err    error
}

func (a *fakeAsker) Ask(context.Context, string, string) (assistant.Answer, error) {
	return a.answer, a.err
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	cfg := config.Config{Port: "0", UploadDir: t.TempDir()}
	if deps.Tracker == nil {
		deps.Tracker = jobs.NewTracker(jobs.NewMemoryStore(), nil, nil)
	}
	if deps.Hub == nil {
		deps.Hub = progress.NewHub(nil)
	}
	if deps.Pipeline == nil {
		deps.Pipeline = newFakeRunner()
	}
	if deps.Assistant == nil {
		deps.Assistant = &fakeAsker{}
	}
	return New(cfg, deps)
}

func TestUploadStartsIngestion(t *testing.T) {
	runner := newFakeRunner()
	srv := newTestServer(t, Deps{Pipeline: runner})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["job_id"])
	assert.Equal(t, "report.pdf", resp["filename"])

	select {
	case run := <-runner.started:
		assert.Equal(t, resp["job_id"], run.jobID)
		assert.Equal(t, "report.pdf", run.filename)
		data, err := os.ReadFile(run.path)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 fake", string(data))
		assert.Equal(t, srv.cfg.UploadDir, filepath.Dir(run.path))
	case <-time.After(time.Second):
		t.Fatal("ingestion was not started")
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressReturnsRecord(t *testing.T) {
	tracker := jobs.NewTracker(jobs.NewMemoryStore(), nil, nil)
	tracker.Create(context.Background(), "job-1", "report.pdf", 10)
	srv := newTestServer(t, Deps{Tracker: tracker})

	req := httptest.NewRequest(http.MethodGet, "/api/progress/job-1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var record jobs.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "job-1", record.JobID)
	assert.Equal(t, jobs.StatusStarting, record.Status)
	assert.Equal(t, 10, record.TotalPages)
}

func TestProgressUnknownJob(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/progress/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "job not found")
}

type brokenStore struct{ *jobs.MemoryStore }

func (b *brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestProgressStoreFailure(t *testing.T) {
	tracker := jobs.NewTracker(&brokenStore{jobs.NewMemoryStore()}, nil, nil)
	srv := newTestServer(t, Deps{Tracker: tracker})

	req := httptest.NewRequest(http.MethodGet, "/api/progress/job-1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var record jobs.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, jobs.StatusError, record.Status)
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{answer: assistant.Answer{
		Answer:  "42",
		Sources: []string{"chunk one"},
		Mode:    assistant.ModeRAG,
	}}
	srv := newTestServer(t, Deps{Assistant: asker})

	body := strings.NewReader(`{"question": "what is the answer?", "mode": "rag"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var answer assistant.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "42", answer.Answer)
	assert.Equal(t, []string{"chunk one"}, answer.Sources)
}

func TestAskValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing question", `{"mode": "rag"}`, http.StatusBadRequest},
		{"blank question", `{"question": "   "}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{})
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAskUnknownMode(t *testing.T) {
	asker := &fakeAsker{err: errors.New(`unknown mode "turbo"`)}
	srv := newTestServer(t, Deps{Assistant: asker})

	body := strings.NewReader(`{"question": "hi", "mode": "turbo"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		neo4jErr   error
		redisErr   error
		wantStatus string
		wantNeo4j  string
	}{
		{"all up", nil, nil, "ok", "up"},
		{"neo4j down", errors.New("refused"), nil, "degraded", "down"},
		{"redis down", nil, errors.New("refused"), "degraded", "up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{
				Graph:    &fakePinger{err: tt.neo4jErr},
				JobStore: &fakePinger{err: tt.redisErr},
			})

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			assert.Equal(t, tt.wantNeo4j, resp["neo4j"])
		})
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "uptime_seconds")
}
