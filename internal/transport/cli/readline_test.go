package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/service/command"
	"github.com/sandevgo/mythic/internal/service/conversation"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordEstimator struct{}

func (wordEstimator) EstimateTokens(text string) int { return len(strings.Fields(text)) }

// fakeSession answers every input by emitting the events a real turn would.
type fakeSession struct {
	bus    *events.Bus
	engine *conversation.Engine
	chunks []string
	inputs []string
}

func (s *fakeSession) HandleInput(ctx context.Context, text string) (orchestrator.TurnResult, error) {
	s.inputs = append(s.inputs, text)
	s.engine.Append(core.RoleUser, text)
	reply := "echo: " + text
	for _, c := range s.chunks {
		s.bus.Emit(ctx, "test", events.ResponseChunk, map[string]any{events.KeyText: c})
	}
	s.engine.Append(core.RoleAssistant, reply)
	s.bus.Emit(ctx, "test", events.ResponseCompleted, map[string]any{events.KeyResponse: reply})
	return orchestrator.TurnResult{Response: reply}, nil
}

func (s *fakeSession) Engine() *conversation.Engine { return s.engine }
func (s *fakeSession) Status() orchestrator.Report  { return orchestrator.Report{} }

func newTestReadLine(t *testing.T) (*ReadLine, *fakeSession, *bytes.Buffer) {
	t.Helper()
	bus := events.NewBus()
	engine, err := conversation.NewEngine(context.Background(), conversation.Config{
		SummaryTriggerThreshold: 20,
		RecentTailSize:          6,
		SummaryMaxLength:        150,
		OperationTimeout:        time.Second,
	}, wordEstimator{}, nil, bus)
	require.NoError(t, err)

	session := &fakeSession{bus: bus, engine: engine}
	out := &bytes.Buffer{}
	r := newReadLine(session, command.New(command.NewCommands(session)), out)
	r.subscribe(bus)
	return r, session, out
}

func TestHandleLine_Turn(t *testing.T) {
	r, session, out := newTestReadLine(t)

	assert.False(t, r.handleLine(context.Background(), "  hello  "))
	assert.Equal(t, []string{"hello"}, session.inputs)
	assert.Equal(t, "echo: hello\n", out.String())
}

func TestHandleLine_StreamedTurn(t *testing.T) {
	r, session, out := newTestReadLine(t)
	session.chunks = []string{"echo", ": ", "hi"}

	r.handleLine(context.Background(), "hi")
	assert.Equal(t, "echo: hi\n", out.String())
}

func TestHandleLine_Fallback(t *testing.T) {
	_, session, out := newTestReadLine(t)
	ctx := context.Background()

	session.bus.Emit(ctx, "test", events.ResponseFallback, map[string]any{events.KeyResponse: "sorry"})
	assert.Equal(t, "sorry\n", out.String())

	out.Reset()
	session.bus.Emit(ctx, "test", events.ResponseChunk, map[string]any{events.KeyText: "half"})
	session.bus.Emit(ctx, "test", events.ResponseFallback, map[string]any{events.KeyResponse: "sorry"})
	assert.Equal(t, "half\nsorry\n", out.String())
}

func TestSummaryNotice(t *testing.T) {
	_, session, out := newTestReadLine(t)

	session.bus.Emit(context.Background(), "test", events.SummaryCompleted, map[string]any{
		events.KeyMessages: 6,
		events.KeyCovers:   14,
	})
	assert.Contains(t, out.String(), "summarized 6 messages, summary covers 14")
}

func TestHandleLine_Commands(t *testing.T) {
	r, session, out := newTestReadLine(t)
	ctx := context.Background()

	r.handleLine(ctx, "one")
	require.Equal(t, 2, session.engine.Stats().TotalMessages)

	out.Reset()
	r.handleLine(ctx, "/stats")
	assert.Contains(t, out.String(), "2 (user 1, assistant 1)")

	out.Reset()
	r.handleLine(ctx, "/summarize")
	assert.Contains(t, out.String(), conversation.ErrNoMemoryWorker.Error())

	r.handleLine(ctx, "/clear")
	assert.Equal(t, 0, session.engine.Stats().TotalMessages)

	out.Reset()
	r.handleLine(ctx, "/help")
	assert.Contains(t, out.String(), "/summarize")

	assert.False(t, r.handleLine(ctx, ""))
	assert.Len(t, session.inputs, 1)
}

func TestHandleLine_Exit(t *testing.T) {
	r, session, _ := newTestReadLine(t)

	assert.True(t, r.handleLine(context.Background(), "exit"))
	assert.True(t, r.handleLine(context.Background(), "/exit"))
	assert.Empty(t, session.inputs)
}

func TestShutdown_WithoutInstance(t *testing.T) {
	r, _, _ := newTestReadLine(t)
	assert.NoError(t, r.Shutdown(context.Background()))
}
