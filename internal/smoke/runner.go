package smoke

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/ctxlog"
)

// Result is the outcome of one step.
type Result struct {
	Step     Step
	Status   int
	Code     string
	Duration time.Duration
	Err      error
}

// OK reports whether the step passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Runner posts a scenario's steps in order and validates every response.
// Steps run sequentially; a failed step does not stop the run, so one bad
// message still exercises the rest of the sequence.
type Runner struct {
	client  *http.Client
	watcher *Watcher
}

// NewRunner builds a runner. watcher may be nil.
func NewRunner(timeout time.Duration, watcher *Watcher) *Runner {
	return &Runner{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		watcher: watcher,
	}
}

// receiveResponse mirrors the server's API envelope.
type receiveResponse struct {
	RequestID string `json:"RequestId"`
	Code      string `json:"Code"`
	Message   string `json:"Message"`
}

// Run executes all steps and returns their results. The returned error is
// non-nil when at least one step failed.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Scenario starting.", "endpoint", scenario.Endpoint, "steps", len(scenario.Steps))

	results := make([]Result, 0, len(scenario.Steps))
	failed := 0
	for _, step := range scenario.Steps {
		result := r.runStep(ctx, scenario, step)
		if result.OK() {
			logger.Info("Step passed.", "step", step.Name, "status", result.Status, "code", result.Code, "duration", result.Duration)
		} else {
			failed++
			logger.Error("Step failed.", "step", step.Name, "error", result.Err)
		}
		results = append(results, result)
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d steps failed", failed, len(results))
	}
	logger.Info("Scenario passed.", "steps", len(results))
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, scenario *Scenario, step Step) Result {
	result := Result{Step: step}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	body, err := sonic.Marshal(step.Message)
	if err != nil {
		result.Err = fmt.Errorf("failed to marshal message: %w", err)
		return result
	}

	stepCtx, cancel := context.WithTimeout(ctx, scenario.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(stepCtx, http.MethodPost, scenario.Endpoint, bytes.NewReader(body))
	if err != nil {
		result.Err = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(beacon.FieldRequestID, requestID)

	resp, err := r.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("failed to execute request: %w", err)
		return result
	}
	defer resp.Body.Close()
	result.Status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Errorf("failed to read response body: %w", err)
		return result
	}

	var envelope receiveResponse
	if err := sonic.Unmarshal(respBody, &envelope); err != nil {
		result.Err = fmt.Errorf("response is not valid JSON: %w", err)
		return result
	}
	result.Code = envelope.Code

	// Steps expecting "ok" must see HTTP 200; steps probing rejection paths
	// only pin the response code.
	if step.ExpectCode == "ok" && resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("unexpected HTTP status %d (code %q, message %q)", resp.StatusCode, envelope.Code, envelope.Message)
		return result
	}
	if envelope.Code != step.ExpectCode {
		result.Err = fmt.Errorf("unexpected response code %q, want %q", envelope.Code, step.ExpectCode)
		return result
	}
	if envelope.RequestID != requestID {
		result.Err = fmt.Errorf("response RequestId %q does not echo request %q", envelope.RequestID, requestID)
		return result
	}

	// Rejected messages are never broadcast, so only accepted steps wait.
	if r.watcher != nil && step.ExpectCode == "ok" {
		if err := r.watcher.Await(stepCtx, step.Message.IDNumber, step.Message.MessageID); err != nil {
			result.Err = fmt.Errorf("live broadcast not observed: %w", err)
		}
	}
	return result
}
