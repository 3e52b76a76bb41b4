package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assessment-engine/internal/grading"
)

// Client talks to the remote code execution sandbox.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type testCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

type executeRequest struct {
	Language  string     `json:"language"`
	Code      string     `json:"code"`
	TestCases []testCase `json:"test_cases"`
}

type caseResult struct {
	CaseID   string `json:"case_id"`
	Output   string `json:"output"`
	TimeMs   int64  `json:"time_ms"`
	MemoryKB int64  `json:"memory_kb"`
	Passed   bool   `json:"passed"`
}

type executeResponse struct {
	Passed  bool         `json:"passed"`
	Results []caseResult `json:"results"`
}

func (c *Client) Execute(ctx context.Context, req grading.ExecutionRequest) (grading.ExecutionResult, error) {
	body := executeRequest{Language: req.Language, Code: req.Code}
	for _, tc := range req.TestCases {
		body.TestCases = append(body.TestCases, testCase{ID: tc.ID, Input: tc.Input, ExpectedOutput: tc.Expected})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return grading.ExecutionResult{}, fmt.Errorf("marshal execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return grading.ExecutionResult{}, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return grading.ExecutionResult{}, fmt.Errorf("execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return grading.ExecutionResult{}, fmt.Errorf("execute: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return grading.ExecutionResult{}, fmt.Errorf("decode execute response: %w", err)
	}

	result := grading.ExecutionResult{Passed: out.Passed}
	for _, r := range out.Results {
		result.Cases = append(result.Cases, grading.CaseOutcome{
			CaseID:   r.CaseID,
			Output:   r.Output,
			Passed:   r.Passed,
			TimeMs:   r.TimeMs,
			MemoryKB: r.MemoryKB,
		})
	}
	return result, nil
}
