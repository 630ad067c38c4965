package draco

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// APIError is a non-2xx reply from the solver service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("draco service error: status=%d body=%s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("draco service error: status=%d", e.StatusCode)
}

// HTTPClient calls a solver service exposing POST <base>/complete-spec.
type HTTPClient struct {
	httpClient       *http.Client
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	logger           *slog.Logger
}

// NewHTTPClient builds a client; non-positive knobs fall back to defaults.
func NewHTTPClient(baseURL string, timeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		httpClient:       &http.Client{Timeout: timeout},
		baseURL:          strings.TrimRight(baseURL, "/"),
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
		logger:           logger,
	}
}

// Complete implements Completer.
func (c *HTTPClient) Complete(ctx context.Context, facts []string, n int) ([]Completion, error) {
	payload, err := newRequest(facts, n)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/complete-spec"
	backoff := c.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out, retry, err := c.do(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retry || attempt == c.retryMaxAttempts {
			break
		}
		wait := utils.WithJitter(backoff)
		if wait > c.retryMaxDelay {
			wait = c.retryMaxDelay
		}
		backoff *= 2
		c.logger.Debug("retrying draco request", "attempt", attempt, "wait", wait, "error", err)
		if err := utils.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) do(ctx context.Context, endpoint string, payload []byte) ([]Completion, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.IsRetryableNetErr(err), fmt.Errorf("draco request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read draco response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}
	out, err := decodeCompletions(body)
	return out, false, err
}
