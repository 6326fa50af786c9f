package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/sandevgo/mythic/pkg/retry"
)

// NewProvider creates the LLM worker selected by configuration.
func NewProvider(ctx context.Context, cfg *config.LLMConfig, opts ...worker.Option) (*OpenAICompatible, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	r := retry.NewDefaultConfig()
	r.MaxRetries = cfg.MaxRetries

	var p *OpenAICompatible
	switch cfg.Provider {
	case "openai":
		p = NewOpenAI(cfg.APIKey, cfg.Model, r, opts...)
	case "openrouter":
		p = NewOpenRouter(cfg.APIKey, cfg.Model, r, opts...)
	case "ollama":
		p = NewOllama(cfg.BaseURL, cfg.APIKey, cfg.Model, r, opts...)
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom llm provider requires LLM_BASE_URL")
		}
		p = NewCustomOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, r, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}

	if cfg.BaseURL != "" {
		p.baseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		p.client.Timeout = cfg.RequestTimeout
	}
	return p, nil
}
