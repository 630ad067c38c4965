package ai

import (
	"log/slog"
	"strings"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	HTTPTimeout       time.Duration
	RetryMax          int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerSecond float64
	Logger            *slog.Logger
	// OpenAI-compatible
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[strings.ToLower(name)]; ok {
		return f(cfg), true
	}
	return nil, false
}

func openAICompatible(defaultBase string, headers map[string]string) RuntimeFactory {
	return func(c RuntimeConfig) Runtime {
		base := c.BaseURL
		if base == "" {
			base = defaultBase
		}
		cl := NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, base).
			WithRateLimit(c.RequestsPerSecond).
			WithLogger(c.Logger)
		for k, v := range headers {
			cl.WithHeader(k, v)
		}
		return cl
	}
}

// init registers built-in runtimes.
func init() {
	RegisterRuntime(ProviderOpenAI, openAICompatible(DefaultOpenAIBaseURL, nil))
	RegisterRuntime(ProviderOpenRouter, openAICompatible(DefaultOpenRouterBaseURL, map[string]string{
		"HTTP-Referer": "https://github.com/KaramelBytes/vizeval-cli",
		"X-Title":      "vizeval CLI",
	}))
	ollama := func(c RuntimeConfig) Runtime {
		if c.RetryMax <= 0 {
			c.RetryMax = 2
		}
		if c.BaseDelay <= 0 {
			c.BaseDelay = 200 * time.Millisecond
		}
		if c.MaxDelay <= 0 {
			c.MaxDelay = 1 * time.Second
		}
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	}
	RegisterRuntime(ProviderOllama, ollama)
	RegisterRuntime(ProviderLocal, ollama)
}
