package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient       *http.Client
	host             string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// NewOllamaClient creates a new client targeting the given host (e.g., http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 2
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 1 * time.Second
	}
	return &OllamaClient{
		httpClient:       &http.Client{Timeout: httpTimeout},
		host:             strings.TrimRight(host, "/"),
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// Structures aligned with Ollama /api/chat (non-streaming)
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Generate sends a chat request to Ollama and maps the response to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.Temperature != nil {
		oreq.Options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.host + "/api/chat"
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
		if err := utils.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *OllamaClient) do(ctx context.Context, endpoint string, payload []byte) (*GenerateResponse, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, utils.IsRetryableNetErr(err), &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
		if msg, ok := raw["error"].(string); ok {
			apiErr.Message = msg
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			// Likely missing model
			return nil, false, &ModelNotFoundError{APIError: apiErr}
		case resp.StatusCode >= 500:
			return nil, true, &ServerError{APIError: apiErr}
		case resp.StatusCode == http.StatusBadRequest:
			return nil, false, &BadRequestError{APIError: apiErr}
		}
		return nil, false, apiErr
	}

	var oresp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
		Usage: Usage{
			PromptTokens:     oresp.PromptEvalCount,
			CompletionTokens: oresp.EvalCount,
			TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
		},
		RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
	}, false, nil
}
