package llm

import (
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/retry"
)

const ollamaBaseURL = "http://localhost:11434"

// NewOllama targets the OpenAI compatible endpoints of a local Ollama server.
func NewOllama(baseURL, apiKey, model string, r *retry.Config, opts ...worker.Option) *OpenAICompatible {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		Retry:      r,
	}, opts...)
}
