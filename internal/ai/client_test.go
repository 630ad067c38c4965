package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizeval-cli/internal/testutil"
)

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, bodyOK any) (*testutil.Server, *int32) {
	t.Helper()
	var idx int32
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if headers != nil && i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] >= 200 && statuses[i] < 300 {
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	return srv, &idx
}

func okResponse(content string) GenerateResponse {
	return GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}}}
}

func userRequest() GenerateRequest {
	return GenerateRequest{Model: "gpt-4", Messages: []Message{{Role: "user", Content: "hi"}}}
}

func TestGenerateRetriesOn429(t *testing.T) {
	srv, calls := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, okResponse("ok"))

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, userRequest())
	require.NoError(t, err)
	content, err := resp.Content()
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRetryAfterHonored(t *testing.T) {
	srv, _ := testServerSequence(t, []int{503, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, okResponse("ok"))

	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, userRequest())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestRetriesExhaustedReturnsServerError(t *testing.T) {
	srv, calls := testServerSequence(t, []int{500}, nil, nil)

	c := NewClientWithBaseURL("test", 2*time.Second, 2, time.Millisecond, 5*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), userRequest())
	var se *ServerError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestSingleAttemptDisablesRetry(t *testing.T) {
	srv, calls := testServerSequence(t, []int{429, 200}, nil, okResponse("ok"))

	c := NewClientWithBaseURL("test", 2*time.Second, 1, time.Millisecond, time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), userRequest())
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), userRequest())
	require.Error(t, err)
	var br *BadRequestError
	assert.True(t, errors.As(err, &br))
	assert.Contains(t, err.Error(), "req_test_123")
}

func TestAuthErrorClassified(t *testing.T) {
	srv, _ := testServerSequence(t, []int{401}, nil, nil)
	c := NewClientWithBaseURL("bad", 2*time.Second, 3, time.Millisecond, time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), userRequest())
	var ae *AuthError
	assert.True(t, errors.As(err, &ae), "got %v", err)
}

func TestRequestShape(t *testing.T) {
	var got map[string]any
	var auth, title string
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body
		_ = json.NewEncoder(w).Encode(okResponse("ok"))
	}))

	rt, ok := GetRuntime(ProviderOpenRouter, RuntimeConfig{APIKey: "sk-1", BaseURL: srv.URL, RetryMax: 1})
	require.True(t, ok)
	req := userRequest()
	req.Temperature = Temperature(0)
	text, err := Complete(context.Background(), rt, req)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "Bearer sk-1", auth)
	assert.Equal(t, "vizeval CLI", title)
	assert.Equal(t, "gpt-4", got["model"])
	assert.Contains(t, got, "temperature", "explicit zero temperature is sent")
	assert.Equal(t, 0.0, got["temperature"])

	// without a temperature the provider default applies
	_, err = Complete(context.Background(), rt, userRequest())
	require.NoError(t, err)
	assert.NotContains(t, got, "temperature")
}

func TestRateLimitPacesRequests(t *testing.T) {
	srv, _ := testServerSequence(t, []int{200}, nil, okResponse("ok"))
	c := NewClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL).WithRateLimit(5)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), userRequest())
		require.NoError(t, err)
	}
	// burst of 1 at 5 rps: the 2nd and 3rd calls wait ~200ms each
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
}

func TestMissingKeyAndModel(t *testing.T) {
	_, err := NewClient("", 0, 0, 0, 0).Generate(context.Background(), userRequest())
	assert.Error(t, err)

	_, err = NewClient("k", 0, 0, 0, 0).Generate(context.Background(), GenerateRequest{})
	assert.Error(t, err)
}

func TestUnknownRuntime(t *testing.T) {
	_, ok := GetRuntime("nope", RuntimeConfig{})
	assert.False(t, ok)
}

func TestHint(t *testing.T) {
	assert.Contains(t, Hint(&AuthError{APIError: &APIError{StatusCode: 401}}), "OPENAI_API_KEY")
	assert.Contains(t, Hint(&UnreachableError{Host: "h", Err: errors.New("x")}), "ollama_host")
	assert.Empty(t, Hint(errors.New("other")))
}
