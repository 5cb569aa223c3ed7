// Package execution is the HTTP client for the coding-agent execution service.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/secondary"
)

const dispatchPath = "/dispatch"

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration // per attempt
	MaxRetryElapsed time.Duration // total retry budget; zero disables retries
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client implements secondary.ExecutionClient over HTTP.
//
// Network errors and 5xx/429 responses are retried with exponential backoff.
// Any other non-2xx response is the agent refusing the task and is reported
// as an unsuccessful DispatchResult rather than an error.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	maxRetryElapsed time.Duration
	logger          *zap.Logger
}

// NewClient creates an execution client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		httpClient:      httpClient,
		maxRetryElapsed: opts.MaxRetryElapsed,
		logger:          logging.Component(opts.Logger, "execution-client"),
	}
}

// retryableStatusError marks a response worth retrying.
type retryableStatusError struct {
	status int
	body   string
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("execution service returned %d: %s", e.status, e.body)
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.maxRetryElapsed
	var b backoff.BackOff = bo
	if c.maxRetryElapsed <= 0 {
		b = &backoff.StopBackOff{}
	}
	return backoff.WithContext(b, ctx)
}

// Dispatch sends a task to the execution service.
func (c *Client) Dispatch(ctx context.Context, payload secondary.DispatchPayload) (*secondary.DispatchResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("execution client is not configured (execution.url is empty)")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dispatch payload: %w", err)
	}

	var result *secondary.DispatchResult
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		res, err := c.post(ctx, body)
		if err != nil {
			c.logger.Warn("dispatch attempt failed",
				zap.String("assignment_id", payload.AssignmentID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		result = res
		return nil
	}, c.newBackoff(ctx))
	if err != nil {
		return nil, fmt.Errorf("dispatch failed after %d attempt(s): %w", attempt, err)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*secondary.DispatchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dispatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build dispatch request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var result secondary.DispatchResult
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil && resp.StatusCode < 300 {
			return nil, backoff.Permanent(fmt.Errorf("failed to decode dispatch response: %w", err))
		}
	}

	if resp.StatusCode >= 300 {
		result.Success = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("execution service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return &result, nil
	}

	if result.Success && result.ExecutionID == "" {
		result.Success = false
		result.Error = "execution service acknowledged without an execution_id"
	}
	return &result, nil
}

// Ensure Client implements the interface
var _ secondary.ExecutionClient = (*Client)(nil)
