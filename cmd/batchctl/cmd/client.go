package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"batchplane/pkg/api"
)

// BatchClient handles API calls to the batchplane daemon.
type BatchClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewBatchClient creates a new client for the given base URL.
func NewBatchClient(baseURL string) *BatchClient {
	return &BatchClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// SubmitJob sends POST /api/v1/jobs.
func (c *BatchClient) SubmitJob(req api.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, "/api/v1/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus sends GET /api/v1/jobs/{id}.
func (c *BatchClient) JobStatus(jobID string) (*api.JobStatusResponse, error) {
	var result api.JobStatusResponse
	if err := c.do(http.MethodGet, "/api/v1/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelJob sends DELETE /api/v1/jobs/{id}.
func (c *BatchClient) CancelJob(jobID string) (*api.CancelJobResponse, error) {
	var result api.CancelJobResponse
	if err := c.do(http.MethodDelete, "/api/v1/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RawJSON fetches a GET endpoint and returns the pretty-printed body.
func (c *BatchClient) RawJSON(path string) (string, error) {
	var raw json.RawMessage
	if err := c.do(http.MethodGet, path, nil, &raw); err != nil {
		return "", err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format response: %w", err)
	}
	return pretty.String(), nil
}

func (c *BatchClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
