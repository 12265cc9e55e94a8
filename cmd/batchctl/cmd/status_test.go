package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"batchplane/pkg/api"
)

func TestStatusCommand_Success(t *testing.T) {
	resetViper()

	created := time.Now().Add(-10 * time.Minute)
	started := time.Now().Add(-9 * time.Minute)
	completed := time.Now().Add(-5 * time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET method, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/api/v1/jobs/ocr_123") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		resp := api.JobStatusResponse{
			JobID:        "ocr_123",
			Type:         "ocr_processing",
			Priority:     "high",
			Status:       "completed",
			Score:        200,
			RetryCount:   1,
			MaxRetries:   3,
			CreatedAt:    created,
			StartedAt:    &started,
			CompletedAt:  &completed,
			ExecutionLog: []string{"attempt 1 failed: timeout", "attempt 2 completed in 3.20s"},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	output := executeCommand("status", "ocr_123")

	if !strings.Contains(output, "ocr_123") {
		t.Errorf("expected job ID in output, got: %s", output)
	}
	if !strings.Contains(output, "COMPLETED") {
		t.Errorf("expected COMPLETED status, got: %s", output)
	}
	if !strings.Contains(output, "200.00") {
		t.Errorf("expected score in output, got: %s", output)
	}
	if !strings.Contains(output, "1/3") {
		t.Errorf("expected retry counter, got: %s", output)
	}
	if !strings.Contains(output, "attempt 2 completed") {
		t.Errorf("expected execution log, got: %s", output)
	}
}

func TestStatusCommand_FailedJobShowsError(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := api.JobStatusResponse{
			JobID:        "migration_7",
			Type:         "data_migration",
			Priority:     "normal",
			Status:       "failed",
			RetryCount:   3,
			MaxRetries:   3,
			CreatedAt:    time.Now(),
			ErrorMessage: "source table missing",
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	output := executeCommand("status", "migration_7")

	if !strings.Contains(output, "FAILED") {
		t.Errorf("expected FAILED status, got: %s", output)
	}
	if !strings.Contains(output, "source table missing") {
		t.Errorf("expected error message, got: %s", output)
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unknown job id", Code: "NOT_FOUND"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	output := executeCommand("status", "ghost")
	if !strings.Contains(output, "Status failed (404)") {
		t.Errorf("expected 404 error, got: %s", output)
	}
}

func TestStatusCommand_RequiresJobIDArgument(t *testing.T) {
	resetViper()

	rootCmd.SetArgs([]string{"status"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error when no job ID provided")
	}
}
