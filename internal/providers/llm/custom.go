package llm

import (
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/retry"
)

func NewCustomOpenAI(baseURL, apiKey, model string, r *retry.Config, opts ...worker.Option) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		Retry:      r,
	}, opts...)
}
