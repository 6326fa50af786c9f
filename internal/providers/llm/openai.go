package llm

import (
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/retry"
)

const openAIBaseURL = "https://api.openai.com"

// NewOpenAI creates an LLM worker for the OpenAI API.
func NewOpenAI(apiKey, model string, r *retry.Config, opts ...worker.Option) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    openAIBaseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		Retry:      r,
	}, opts...)
}
