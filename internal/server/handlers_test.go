package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchplane/internal/batch"
	"batchplane/internal/tasks"
	"batchplane/pkg/api"
)

// idleProbe reports an idle host so admission never interferes with
// handler behavior.
type idleProbe struct{}

func (idleProbe) CPUPercent(context.Context) (float64, error)          { return 0, nil }
func (idleProbe) MemoryPercent(context.Context) (float64, error)       { return 0, nil }
func (idleProbe) TotalCores(context.Context) (int, error)              { return 8, nil }
func (idleProbe) TotalMemoryBytes(context.Context) (uint64, error)     { return 16 << 30, nil }
func (idleProbe) AvailableMemoryBytes(context.Context) (uint64, error) { return 16 << 30, nil }

func newTestServer(t *testing.T, cfg Config) (*Server, *batch.Manager) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := batch.NewManager(batch.ManagerConfig{}, idleProbe{}, log)

	registry := tasks.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(registry))

	return New(cfg, manager, registry, log, nil), manager
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
}

func TestHandleSubmit(t *testing.T) {
	srv, manager := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", api.SubmitJobRequest{
		JobID:          "nightly-ocr",
		Task:           "noop",
		Type:           "ocr_processing",
		Priority:       "high",
		RevenueImpact:  3000,
		ProcessingCost: 25,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp api.SubmitJobResponse
	decodeInto(t, rr, &resp)
	assert.Equal(t, "nightly-ocr", resp.JobID)

	job, ok := manager.Job("nightly-ocr")
	require.True(t, ok)
	assert.Equal(t, batch.StatusPending, job.Status())
	assert.InDelta(t, 3000.0, job.Metrics.RevenueImpact, 1e-9)
}

func TestHandleSubmit_Errors(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	tests := []struct {
		name       string
		req        api.SubmitJobRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown task",
			req:        api.SubmitJobRequest{Task: "transcode", Type: "ocr_processing", Priority: "normal"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_TASK",
		},
		{
			name:       "unknown priority",
			req:        api.SubmitJobRequest{Task: "noop", Type: "ocr_processing", Priority: "urgent"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_PRIORITY",
		},
		{
			name:       "unknown job type",
			req:        api.SubmitJobRequest{Task: "noop", Type: "telemetry", Priority: "normal"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", tt.req)
			assert.Equal(t, tt.wantStatus, rr.Code)

			var errResp api.ErrorResponse
			decodeInto(t, rr, &errResp)
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}
}

func TestHandleSubmit_DuplicateID(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	req := api.SubmitJobRequest{JobID: "dup", Task: "noop", Type: "ocr_processing", Priority: "normal"}

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", req)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", req)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var errResp api.ErrorResponse
	decodeInto(t, rr, &errResp)
	assert.Equal(t, "DUPLICATE_ID", errResp.Code)
}

func TestHandleSubmit_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleJobStatus(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", api.SubmitJobRequest{
		JobID: "lookup-me", Task: "noop", Type: "customer_data", Priority: "critical",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/jobs/lookup-me", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.JobStatusResponse
	decodeInto(t, rr, &resp)
	assert.Equal(t, "lookup-me", resp.JobID)
	assert.Equal(t, "customer_data", resp.Type)
	assert.Equal(t, "critical", resp.Priority)
	assert.Equal(t, "pending", resp.Status)
	assert.Greater(t, resp.Score, 0.0)
	assert.Nil(t, resp.StartedAt)
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCancel(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", api.SubmitJobRequest{
		JobID: "doomed", Task: "noop", Type: "ocr_processing", Priority: "normal",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/jobs/doomed", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.CancelJobResponse
	decodeInto(t, rr, &resp)
	assert.True(t, resp.Cancelled)

	// Cancelling again conflicts: the job is already terminal.
	rr = doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/jobs/doomed", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleStatsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", api.SubmitJobRequest{
		Task: "noop", Type: "ocr_processing", Priority: "normal",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats batch.SchedulerStats
	decodeInto(t, rr, &stats)
	assert.EqualValues(t, 1, stats.TotalSubmitted)
	assert.Equal(t, 1, stats.QueueSize)

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/resources", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res batch.ResourceStats
	decodeInto(t, rr, &res)
	assert.InDelta(t, 8.0, res.AvailableCPUCores, 1e-9)

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/roi", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var roi map[string]any
	decodeInto(t, rr, &roi)
	assert.Equal(t, false, roi["has_data"])

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var dash batch.Dashboard
	decodeInto(t, rr, &dash)
	assert.Equal(t, batch.HealthHealthy, dash.SystemHealth)
}

func TestHandleTasks(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string][]string
	decodeInto(t, rr, &resp)
	assert.Equal(t, []string{"noop", "sleep"}, resp["tasks"])
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "trace-me", rr.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitRPS: 1, RateLimitBurst: 1})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	var errResp api.ErrorResponse
	decodeInto(t, rr, &errResp)
	assert.Equal(t, "RATE_LIMITED", errResp.Code)
}
