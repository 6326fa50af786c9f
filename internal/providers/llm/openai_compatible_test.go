package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, BackoffFactor: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func modelsHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = fmt.Fprint(w, `{"data":[{"id":"test-model"}]}`)
}

func newTestProvider(t *testing.T, mux *http.ServeMux) *OpenAICompatible {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Model:      "test-model",
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		Retry:      fastRetry(),
	})
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func TestOpenAICompatible_Generate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", modelsHandler)
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 64, req.MaxTokens)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	})
	p := newTestProvider(t, mux)

	got, err := p.Generate(context.Background(), "hello", core.GenerateOptions{MaxTokens: 64, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
	assert.Equal(t, core.StateReady, p.State())
}

func TestOpenAICompatible_GenerateRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", modelsHandler)
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})
	p := newTestProvider(t, mux)

	got, err := p.Generate(context.Background(), "x", core.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAICompatible_GeneratePermanentFailure(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", modelsHandler)
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	p := newTestProvider(t, mux)

	_, err := p.Generate(context.Background(), "x", core.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, core.KindWorkerOperation, core.KindOf(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestOpenAICompatible_InitializeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewCustomOpenAI(srv.URL, "", "m", fastRetry())
	err := p.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindWorkerInitialization, core.KindOf(err))
	assert.Equal(t, core.StateFailed, p.State())

	_, err = p.Generate(context.Background(), "x", core.GenerateOptions{})
	require.Error(t, err)
}

func TestOpenAICompatible_GenerateStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", modelsHandler)
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo", " world"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		_, _ = fmt.Fprint(w, ": keep-alive\n\ndata: {\"choices\":[{\"delta\":{}}]}\n\ndata: [DONE]\n\n")
	})
	p := newTestProvider(t, mux)

	seq, err := p.GenerateStream(context.Background(), "hi", core.GenerateOptions{})
	require.NoError(t, err)

	var chunks []string
	for chunk, err := range seq {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"Hel", "lo", " world"}, chunks)
}

func TestOpenAICompatible_GenerateStreamEarlyStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", modelsHandler)
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		for i := range 5 {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"%d\"}}]}\n\n", i)
		}
	})
	p := newTestProvider(t, mux)

	seq, err := p.GenerateStream(context.Background(), "hi", core.GenerateOptions{})
	require.NoError(t, err)

	var got []string
	for chunk := range seq {
		got = append(got, chunk)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"0", "1"}, got)
}

func TestReadStream_BadChunk(t *testing.T) {
	var errs int
	for _, err := range readStream(strings.NewReader("data: {oops\n")) {
		if err != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	text := "The quick brown fox jumps over the lazy dog."
	n := EstimateTokens(text)
	assert.Positive(t, n)
	assert.Equal(t, n, EstimateTokens(text))
	assert.GreaterOrEqual(t, EstimateTokens(text+" "+text), n)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantURL string
		wantErr bool
	}{
		{name: "openai", cfg: config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, wantURL: openAIBaseURL},
		{name: "openrouter", cfg: config.LLMConfig{Provider: "openrouter"}, wantURL: openRouterBaseURL},
		{name: "ollama default url", cfg: config.LLMConfig{Provider: "ollama"}, wantURL: ollamaBaseURL},
		{name: "override url", cfg: config.LLMConfig{Provider: "openai", BaseURL: "http://proxy"}, wantURL: "http://proxy"},
		{name: "custom without url", cfg: config.LLMConfig{Provider: "custom"}, wantErr: true},
		{name: "unknown", cfg: config.LLMConfig{Provider: "anthropic"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(ctx, &tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, p.baseURL)
			assert.Equal(t, "llm", p.Name())
		})
	}
}

func TestNewOpenRouter_Headers(t *testing.T) {
	p := NewOpenRouter("k", "m", nil)
	assert.Equal(t, core.MythicName, p.extraHeaders["X-Title"])
}
