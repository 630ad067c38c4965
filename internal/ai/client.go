package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// Default endpoints for OpenAI-compatible providers.
const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	limiter          *rate.Limiter
	extraHeaders     map[string]string
	logger           *slog.Logger
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	// Temperature is omitted when nil so the provider default applies.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Temperature returns a pointer for GenerateRequest.Temperature.
func Temperature(t float64) *float64 { return &t }

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Content returns the first choice's message text.
func (r *GenerateResponse) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", errors.New("empty response: no choices")
	}
	return r.Choices[0].Message.Content, nil
}

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("status=%d", e.StatusCode)}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.RequestID != "" {
		parts = append(parts, "request_id="+e.RequestID)
	}
	if e.Message != "" {
		parts = append(parts, "message="+e.Message)
	}
	return "api error: " + strings.Join(parts, " ")
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
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
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		apiKey:           apiKey,
		baseURL:          DefaultOpenAIBaseURL,
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
		extraHeaders:     map[string]string{},
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests and for proxies).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithRateLimit paces requests to at most rps per second; rps <= 0 disables pacing.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		c.limiter = nil
	}
	return c
}

// WithHeader sets a header sent with every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.extraHeaders[key] = value
	return c
}

// WithLogger sets the logger used for retry diagnostics.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.logger = l
	return c
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func validateModel(model string) error {
	if model == "" {
		return errors.New("model cannot be empty")
	}
	return nil
}

// Generate sends a chat completion request, retrying 429/5xx responses and
// transient network errors with jittered exponential backoff.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is missing")
	}
	if err := validateModel(req.Model); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	backoff := c.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}
		out, wait, err := c.do(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.retryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = utils.WithJitter(backoff)
			if c.retryMaxDelay > 0 && wait > c.retryMaxDelay {
				wait = c.retryMaxDelay
			}
			backoff *= 2
		}
		c.log().Debug("retrying chat completion", "attempt", attempt, "wait", wait, "error", err)
		if err := utils.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs one attempt. wait < 0 means the error is final; wait == 0 means
// retry after the default backoff; wait > 0 is a server-requested delay.
func (c *Client) do(ctx context.Context, endpoint string, payload []byte) (*GenerateResponse, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if utils.IsRetryableNetErr(err) {
			return nil, 0, fmt.Errorf("http request: %w", err)
		}
		return nil, -1, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := utils.ParseRetryAfterSeconds(ra); err == nil && secs > 0 {
					d := time.Duration(secs) * time.Second
					return nil, d, &RateLimitError{APIError: apiErr, RetryAfter: d}
				}
			}
			return nil, 0, classifyAPIError(apiErr, resp)
		}
		return nil, -1, classifyAPIError(apiErr, resp)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, -1, fmt.Errorf("decode response: %w", err)
	}
	out.RequestID = extractRequestID(resp)
	return &out, 0, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	} else if msg, ok := raw["error"].(string); ok {
		apiErr.Message = msg
	}
	if msg, ok := src["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

// classifyAPIError maps generic APIError to typed errors for better UX.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	msg := apiErr.Message
	code := apiErr.Code
	// Auth
	if sc == http.StatusUnauthorized || sc == http.StatusForbidden {
		return &AuthError{APIError: apiErr}
	}
	// Rate limiting
	if sc == http.StatusTooManyRequests {
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := utils.ParseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	}
	// Not found -> model not found if message/code suggests it
	if sc == http.StatusNotFound {
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	}
	if sc == http.StatusBadRequest {
		return &BadRequestError{APIError: apiErr}
	}
	// Quota/billing signals (heuristic)
	if code == "quota_exceeded" || code == "insufficient_quota" || containsAnyFold(msg, "quota", "billing", "limit exceeded") {
		return &QuotaExceededError{APIError: apiErr}
	}
	if sc >= 500 && sc <= 599 {
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	keys := []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"}
	for _, k := range keys {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
