package llm

import (
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/retry"
)

const openRouterBaseURL = "https://openrouter.ai/api"

func NewOpenRouter(apiKey, model string, r *retry.Config, opts ...worker.Option) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    openRouterBaseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		ExtraHeaders: map[string]string{
			"HTTP-Referer": core.MythicRepositoryURL,
			"X-Title":      core.MythicName,
		},
		Retry: r,
	}, opts...)
}
