package main

import (
	"context"
	"strings"
	"testing"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTranscript(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		in := `{"summaries":[{"text":"earlier","covers_message_count":4}],
			"raw_messages":[{"role":"user","text":"hi"},{"role":"assistant","text":"hello"}]}`
		tr, err := decodeTranscript(strings.NewReader(in))
		require.NoError(t, err)
		assert.Len(t, tr.Summaries, 1)
		require.Len(t, tr.RawMessages, 2)
		assert.Equal(t, core.RoleAssistant, tr.RawMessages[1].Role)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := decodeTranscript(strings.NewReader(`{"raw_messages":[{"role":"robot","text":"x"}]}`))
		assert.ErrorContains(t, err, "invalid role")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := decodeTranscript(strings.NewReader(`{"messages":[]}`))
		assert.Error(t, err)
	})
}

func TestOrchestratorConfig(t *testing.T) {
	t.Setenv("MYTHIC_RUNTIME_PATH", t.TempDir())
	cfg, err := config.ParseAppConfig()
	require.NoError(t, err)
	cfg.SystemPrompt = "be brief"

	oc := orchestratorConfig(cfg)
	assert.Equal(t, "be brief", oc.Conversation.SystemPrompt)
	assert.Equal(t, cfg.SummaryMaxWords, oc.Conversation.SummaryMaxLength)
	assert.Equal(t, cfg.Budget(), oc.Budget)
	assert.Equal(t, cfg.OperationTimeout, oc.OperationTimeout)
	assert.NoError(t, oc.Conversation.Validate())
}

type exitingService struct{}

func (exitingService) Start(context.Context) error    { return nil }
func (exitingService) Shutdown(context.Context) error { return nil }

func TestQuitOnExit(t *testing.T) {
	var quit bool
	s := &quitOnExit{Service: exitingService{}, quit: func() { quit = true }}
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, quit)
}
