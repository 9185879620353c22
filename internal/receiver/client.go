package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"presence-backend/internal/wire"
)

// ReportResult is the backend's acknowledgement of a submitted report.
type ReportResult struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// Client posts signed presence reports to the backend ingest endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a reporter client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendReport submits one report and returns the backend's grading of it.
// Rejection statuses are returned alongside a nil error: a rejected report
// is a protocol outcome, not a transport failure, and retrying it with the
// same payload reproduces the same rejection.
func (c *Client) SendReport(ctx context.Context, report wire.Report) (*ReportResult, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presence report: %w", err)
	}

	url := c.baseURL + "/api/v2/presence"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result ReportResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, respBody)
	}
	if result.Status == "" {
		return nil, fmt.Errorf("backend returned status %d without a report status", resp.StatusCode)
	}
	return &result, nil
}
