package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/sandevgo/mythic/pkg/retry"
)

// OpenAICompatible is an LLM worker for any server speaking the OpenAI chat
// completions API.
type OpenAICompatible struct {
	*worker.Lifecycle
	baseProvider
	retrier *retry.Retrier
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
	Timeout      time.Duration
	// Retry defaults to retry.NewDefaultConfig.
	Retry *retry.Config
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig, opts ...worker.Option) *OpenAICompatible {
	o := &OpenAICompatible{
		baseProvider: newBaseProvider(cfg),
		retrier:      retry.NewRetrier(cfg.Retry),
	}
	o.Lifecycle = worker.New("llm", worker.Hooks{Init: o.init}, opts...)
	return o
}

func (o *OpenAICompatible) init(ctx context.Context) error {
	var models []string
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		models, err = o.Models(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("probe models: %w", err)
	}

	logger := log.FromCtx(ctx)
	if len(models) > 0 && !slices.Contains(models, o.model) {
		logger.Warn().Str("model", o.model).Int("available", len(models)).Msg("configured model is not listed by the provider")
	}
	logger.Debug().Str("model", o.model).Str("url", o.baseURL).Msg("llm endpoint reachable")
	return nil
}

// Models lists model ids served by the endpoint.
func (o *OpenAICompatible) Models(ctx context.Context) ([]string, error) {
	resp, err := o.doRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]string, 0, len(apiResp.Data))
	for _, m := range apiResp.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

func (o *OpenAICompatible) newRequest(prompt string, opts core.GenerateOptions, stream bool) chatRequest {
	return chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: string(core.RoleUser), Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.Stop,
		Stream:      stream,
	}
}

// Generate returns the full completion for prompt. Network errors, 429 and
// 5xx responses are retried.
func (o *OpenAICompatible) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	if err := o.Check("generate"); err != nil {
		return "", err
	}

	var text string
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", o.newRequest(prompt, opts, false))
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		defer resp.Body.Close()

		text, err = parseCompletion(resp.Body)
		return err
	})
	return text, o.Track("generate", err)
}

func parseCompletion(r io.Reader) (string, error) {
	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", retry.Permanent(errors.New("empty choices"))
	}
	return result.Choices[0].Message.Content, nil
}

// GenerateStream opens a streaming completion. Only opening the stream is
// retried. Callers must range over the returned sequence: it closes the
// response body when the stream ends or the consumer stops.
func (o *OpenAICompatible) GenerateStream(ctx context.Context, prompt string, opts core.GenerateOptions) (iter.Seq2[string, error], error) {
	if err := o.Check("generate_stream"); err != nil {
		return nil, err
	}

	var resp *http.Response
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", o.newRequest(prompt, opts, true))
		if err != nil {
			return err
		}
		if err := checkStatus(r); err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, o.Track("generate_stream", err)
	}

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()
		for chunk, err := range readStream(resp.Body) {
			if err != nil {
				yield("", o.Track("generate_stream", err))
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		_ = o.Track("generate_stream", nil)
	}, nil
}

func (o *OpenAICompatible) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

// Model returns the configured model id.
func (o *OpenAICompatible) Model() string { return o.model }
