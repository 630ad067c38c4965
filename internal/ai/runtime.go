package ai

import "context"

// Runtime is implemented by chat backends: OpenAI-compatible APIs and local runtimes such as Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for selection in config.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)

// Complete runs req on rt and returns the first reply text.
func Complete(ctx context.Context, rt Runtime, req GenerateRequest) (string, error) {
	resp, err := rt.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content()
}
