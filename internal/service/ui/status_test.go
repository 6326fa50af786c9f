package ui

import (
	"testing"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/service/conversation"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/stretchr/testify/assert"
)

func TestRenderStatus(t *testing.T) {
	r := orchestrator.Report{
		Turn: orchestrator.StateIdle,
		Workers: []core.WorkerStatus{
			{Name: "llm", State: core.StateReady},
			{Name: "tts", State: core.StateFailed, LastError: "no voice"},
		},
		Conversation: conversation.Stats{
			TotalMessages:      4,
			UserMessages:       2,
			AssistantMessages:  2,
			HasSummary:         true,
			SummarizedMessages: 6,
		},
		Uptime:         90*time.Minute + 1500*time.Millisecond,
		CompletedTurns: 2,
		Capabilities:   []string{"core.LLMWorker (singleton)"},
	}

	out := RenderStatus(r, &HostStats{CPUPercent: 12.5, MemoryPercent: 40, MemoryTotal: 8 << 30})
	for _, want := range []string{"llm", "ready", "tts", "failed", "no voice", "covers 6 messages", "12.5%", "8192 MiB", "2 completed, 0 failed", "1h30m2s", "core.LLMWorker (singleton)"} {
		assert.Contains(t, out, want)
	}

	idle := RenderStatus(orchestrator.Report{}, nil)
	assert.NotContains(t, idle, "Host")
	assert.NotContains(t, idle, "uptime")
}
