package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/jobs"
	"github.com/jonathan/talent-pipeline/internal/pipeline"
	"github.com/jonathan/talent-pipeline/internal/server/ratelimit"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// gatedRunner enters the first stage, waits for release, then completes.
type gatedRunner struct {
	store   db.JobStore
	release chan struct{}
}

func (r *gatedRunner) Run(ctx context.Context, job *types.Job) error {
	tracker := pipeline.NewTracker(r.store, job.ID, nil, nil)
	if err := tracker.Enter(ctx, pipeline.StageGeneratingQueries, "", nil); err != nil {
		return err
	}
	select {
	case <-r.release:
	case <-ctx.Done():
		return tracker.Fail(context.WithoutCancel(ctx), ctx.Err(), nil)
	}
	return tracker.Complete(ctx, "Completed: 0 candidates", &types.JobResults{
		Summary:         "nothing found",
		FinalCandidates: []types.Candidate{},
	})
}

type testEnv struct {
	server  *Server
	store   *db.LiteDB
	queue   *jobs.Queue
	runner  *gatedRunner
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := db.OpenLite(ctx, db.MemoryDSN)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	runner := &gatedRunner{store: store, release: make(chan struct{})}
	queue := jobs.NewQueue(store, runner, jobs.Options{Workers: 1, Size: 4}, logger)
	queue.Start(ctx)

	cfg := Config{
		Addr:         "127.0.0.1:0",
		Queue:        queue,
		Candidates:   store,
		Logger:       logger,
		RateLimit:    &ratelimit.Config{Enabled: false},
		PollInterval: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)

	env := &testEnv{server: s, store: store, queue: queue, runner: runner, handler: s.Handler()}
	t.Cleanup(func() {
		select {
		case <-runner.release:
		default:
			close(runner.release)
		}
		queue.Stop()
		s.Close()
		store.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitForStatus(t *testing.T, id string, want types.JobStatus) *types.Job {
	t.Helper()
	var job *types.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = e.store.GetJob(context.Background(), id)
		return err == nil && job != nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestSubmitJob_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{
		Requirement: "Senior Go engineer in Berlin",
		Options:     types.JobOptions{MaxProfiles: 5},
	}, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp SubmitJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, types.JobPending, resp.Status)
	assert.Equal(t, "/jobs/"+resp.JobID, w.Header().Get("Location"))

	job := env.waitForStatus(t, resp.JobID, types.JobProcessing)
	assert.Equal(t, "Senior Go engineer in Berlin", job.Requirement)
	assert.Equal(t, 5, job.Options.MaxProfiles)
}

func TestSubmitJob_CallerID(t *testing.T) {
	env := newTestEnv(t, nil)

	body := SubmitJobRequest{JobID: "job-42", Requirement: "Data engineer"}
	w := env.do(t, http.MethodPost, "/jobs", body, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"jobId":"job-42"`)

	w = env.do(t, http.MethodPost, "/jobs", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitJob_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		body     any
		contains string
	}{
		{name: "not json", body: "{", contains: "Invalid request body"},
		{name: "missing requirement", body: map[string]any{}, contains: "requirement"},
		{name: "blank requirement", body: map[string]any{"requirement": "   "}, contains: "requirement is required"},
		{name: "option out of range", body: map[string]any{"requirement": "x", "options": map[string]int{"maxQueries": 500}}, contains: "maxQueries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/jobs", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{JobID: "job-1", Requirement: "SRE"}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	env.waitForStatus(t, "job-1", types.JobProcessing)

	w = env.do(t, http.MethodGet, "/jobs/job-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp JobStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, types.JobProcessing, resp.Status)
	assert.Equal(t, string(pipeline.StageGeneratingQueries), resp.Stage)
	assert.Equal(t, 5, resp.Progress)
	assert.Nil(t, resp.Results)

	close(env.runner.release)
	env.waitForStatus(t, "job-1", types.JobCompleted)

	w = env.do(t, http.MethodGet, "/jobs/job-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = JobStatusResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.JobCompleted, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	require.NotNil(t, resp.Results)
	assert.Equal(t, "nothing found", resp.Results.Summary)
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/jobs/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "job not found: missing")

	w = env.do(t, http.MethodGet, "/jobs/missing/events", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCandidate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	doc, err := db.BuildDocument(types.Candidate{
		PublicIdentifier: "jdoe",
		FirstName:        "Jane",
		LastName:         "Doe",
		Fingerprint:      "fp-1",
	}, "test")
	require.NoError(t, err)
	doc.ID = "cand-1"
	require.NoError(t, env.store.UpsertCandidate(ctx, &doc))

	w := env.do(t, http.MethodGet, "/candidates/cand-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got db.CandidateDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.Equal(t, "Jane", got.OriginalData.FirstName)

	w = env.do(t, http.MethodGet, "/candidates/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobEvents_StreamsUntilTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	w := env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{JobID: "job-sse", Requirement: "ML engineer"}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	env.waitForStatus(t, "job-sse", types.JobProcessing)

	resp, err := http.Get(ts.URL + "/jobs/job-sse/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readEvent(t, reader)
	assert.Equal(t, eventProgress, event)
	var snapshot JobStatusResponse
	require.NoError(t, json.Unmarshal([]byte(data), &snapshot))
	assert.Equal(t, 5, snapshot.Progress)

	close(env.runner.release)

	event, data = readEvent(t, reader)
	assert.Equal(t, eventComplete, event)
	snapshot = JobStatusResponse{}
	require.NoError(t, json.Unmarshal([]byte(data), &snapshot))
	assert.Equal(t, types.JobCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
}

func TestJobEvents_TerminalJobClosesImmediately(t *testing.T) {
	env := newTestEnv(t, nil)
	close(env.runner.release)

	w := env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{JobID: "done", Requirement: "PM"}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	env.waitForStatus(t, "done", types.JobCompleted)

	w = env.do(t, http.MethodGet, "/jobs/done/events", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: complete\n"), body)
	assert.NotContains(t, body, "event: progress")
}

func TestAuth_RequiredWhenConfigured(t *testing.T) {
	jwtCfg := &config.JWTConfig{Secret: testSecret, ExpirationHours: 1}
	env := newTestEnv(t, func(c *Config) { c.JWT = jwtCfg })

	w := env.do(t, http.MethodGet, "/jobs/any", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{Requirement: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := NewJWTService(jwtCfg).GenerateToken("recruiting-ui")
	require.NoError(t, err)
	w = env.do(t, http.MethodGet, "/jobs/any", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit_JobSubmission(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/jobs", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})

	w := env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{Requirement: "first"}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = env.do(t, http.MethodPost, "/jobs", SubmitJobRequest{Requirement: "second"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	w = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodOptions, "/jobs", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrValidation{Field: "requirement", Message: "required"}, http.StatusBadRequest},
		{jobs.ErrEmptyRequirement, http.StatusBadRequest},
		{&ErrNotFound{Kind: "job", ID: "x"}, http.StatusNotFound},
		{jobs.ErrJobNotFound, http.StatusNotFound},
		{jobs.ErrJobExists, http.StatusConflict},
		{jobs.ErrQueueFull, http.StatusServiceUnavailable},
		{jobs.ErrQueueClosed, http.StatusServiceUnavailable},
		{&db.StoreUnavailableError{Op: "get job", Cause: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

// readEvent reads one "event:/data:" block from an SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
