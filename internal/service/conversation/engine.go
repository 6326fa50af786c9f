// Package conversation keeps the token-bounded view of a dialogue: raw
// messages, the rolling summary that replaces older ones, and prompt assembly.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/pkg/log"
)

const eventSource = "conversation"

// state is an immutable snapshot. Only the writer appends to raw, and only to
// the current state's slice, so older snapshots never observe the append.
type state struct {
	epoch   uint64
	summary *core.Summary
	raw     []core.Message
}

type Engine struct {
	cfg       Config
	estimator core.TokenEstimator
	memory    core.MemoryWorker
	bus       *events.Bus
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	current     atomic.Pointer[state]
	version     atomic.Uint64
	summarizing atomic.Bool
	wg          sync.WaitGroup
}

// NewEngine builds an engine. memory and bus may be nil; without a memory
// worker the raw history is never summarized.
func NewEngine(ctx context.Context, cfg Config, estimator core.TokenEstimator, memory core.MemoryWorker, bus *events.Bus) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation config: %w", err)
	}
	if estimator == nil {
		return nil, errors.New("token estimator is required")
	}

	e := &Engine{
		cfg:       cfg,
		estimator: estimator,
		memory:    memory,
		bus:       bus,
		now:       time.Now,
	}
	e.ctx, e.cancel = context.WithCancel(log.WithComponent(ctx, eventSource))
	e.current.Store(&state{})
	return e, nil
}

// Append records a message and returns it. It never waits for summarization.
func (e *Engine) Append(role core.Role, text string) core.Message {
	msg := core.Message{
		Role:       role,
		Text:       text,
		CreatedAt:  e.now(),
		TokenCount: e.estimator.EstimateTokens(text),
	}

	e.mu.Lock()
	cur := e.current.Load()
	next := &state{
		epoch:   cur.epoch,
		summary: cur.summary,
		raw:     append(cur.raw, msg),
	}
	e.current.Store(next)
	e.version.Add(1)
	e.maybeSummarizeLocked(next)
	e.mu.Unlock()

	return msg
}

// Clear drops all messages and the summary. An in-flight summarization
// result is discarded.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	e.current.Store(&state{epoch: cur.epoch + 1})
	e.version.Add(1)
}

type Snapshot struct {
	Summary  *core.Summary
	Messages []core.Message
}

func (e *Engine) Snapshot() Snapshot {
	st := e.current.Load()
	s := Snapshot{Messages: slices.Clone(st.raw)}
	if st.summary != nil {
		sum := *st.summary
		s.Summary = &sum
	}
	return s
}

type Stats struct {
	TotalMessages      int  `json:"total_messages"`
	UserMessages       int  `json:"user_messages"`
	AssistantMessages  int  `json:"assistant_messages"`
	HasSummary         bool `json:"has_summary"`
	SummarizedMessages int  `json:"summarized_messages"`
	Summarizing        bool `json:"summarizing"`
	RawTokens          int  `json:"raw_tokens"`
}

func (e *Engine) Stats() Stats {
	st := e.current.Load()
	s := Stats{
		TotalMessages: len(st.raw),
		HasSummary:    st.summary != nil,
		Summarizing:   e.summarizing.Load(),
	}
	if st.summary != nil {
		s.SummarizedMessages = st.summary.CoversMessageCount
	}
	for _, m := range st.raw {
		switch m.Role {
		case core.RoleUser:
			s.UserMessages++
		case core.RoleAssistant:
			s.AssistantMessages++
		}
		s.RawTokens += m.TokenCount
	}
	return s
}

// Version increases on every state change.
func (e *Engine) Version() uint64 {
	return e.version.Load()
}

func (e *Engine) Export() core.Transcript {
	st := e.current.Load()
	t := core.Transcript{
		Summaries:   []core.Summary{},
		RawMessages: slices.Clone(st.raw),
	}
	if t.RawMessages == nil {
		t.RawMessages = []core.Message{}
	}
	if st.summary != nil {
		t.Summaries = append(t.Summaries, *st.summary)
	}
	return t
}

// Import replaces the conversation with t. The newest summary becomes the
// current one; older summaries were absorbed by it.
func (e *Engine) Import(t core.Transcript) error {
	raw := make([]core.Message, 0, len(t.RawMessages))
	for i, m := range t.RawMessages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
		if m.TokenCount == 0 && m.Text != "" {
			m.TokenCount = e.estimator.EstimateTokens(m.Text)
		}
		raw = append(raw, m)
	}

	var summary *core.Summary
	if n := len(t.Summaries); n > 0 {
		s := t.Summaries[n-1]
		summary = &s
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	e.current.Store(&state{epoch: cur.epoch + 1, summary: summary, raw: raw})
	e.version.Add(1)
	return nil
}

// Wait blocks until the in-flight summarization, if any, has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels background summarization and waits for it, bounded by ctx.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for summarization: %w", ctx.Err())
	}
}
