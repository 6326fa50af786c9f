package conversation

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
)

var (
	ErrSummarizationInFlight = errors.New("summarization already in flight")
	ErrNoMemoryWorker        = errors.New("no usable memory worker")
	ErrNothingToSummarize    = errors.New("nothing to summarize")
	errEmptySummary          = errors.New("memory worker returned an empty summary")
	errStaleSummary          = errors.New("conversation changed while summarizing")
)

const previousSummaryPrefix = "Summary of the conversation so far: "

// maybeSummarizeLocked starts a background summarization of the oldest T-K
// raw messages once the raw count exceeds T. A trigger while one is running
// is ignored. Caller holds e.mu.
func (e *Engine) maybeSummarizeLocked(st *state) {
	if e.closed || len(st.raw) <= e.cfg.SummaryTriggerThreshold || !e.memoryUsable() {
		return
	}
	if !e.summarizing.CompareAndSwap(false, true) {
		return
	}

	batch := slices.Clone(st.raw[:e.cfg.SummaryTriggerThreshold-e.cfg.RecentTailSize])
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.summarizing.Store(false)

		if err := e.summarize(e.ctx, st.epoch, st.summary, batch); err != nil {
			log.FromCtx(e.ctx).Warn().Err(err).Int("messages", len(batch)).Msg("background summarization failed")
		}
	}()
}

// SummarizeNow synchronously summarizes everything except the recent tail.
func (e *Engine) SummarizeNow(ctx context.Context) error {
	if !e.memoryUsable() {
		return ErrNoMemoryWorker
	}
	if !e.summarizing.CompareAndSwap(false, true) {
		return ErrSummarizationInFlight
	}
	defer e.summarizing.Store(false)

	st := e.current.Load()
	n := len(st.raw) - e.cfg.RecentTailSize
	if n <= 0 {
		return ErrNothingToSummarize
	}
	return e.summarize(ctx, st.epoch, st.summary, slices.Clone(st.raw[:n]))
}

func (e *Engine) memoryUsable() bool {
	return e.memory != nil && e.memory.HealthCheck().State.Usable()
}

func (e *Engine) summarize(ctx context.Context, epoch uint64, prev *core.Summary, batch []core.Message) error {
	logger := log.FromCtx(e.ctx)

	input := batch
	covered := len(batch)
	if prev != nil {
		input = make([]core.Message, 0, len(batch)+1)
		input = append(input, core.Message{
			Role:      core.RoleSystem,
			Text:      previousSummaryPrefix + prev.Text,
			CreatedAt: prev.CreatedAt,
		})
		input = append(input, batch...)
		covered += prev.CoversMessageCount
	}

	e.bus.Emit(ctx, eventSource, events.SummaryStarted, map[string]any{
		events.KeyMessages: len(batch),
	})

	text, err := worker.Call(ctx, e.cfg.OperationTimeout, func(ctx context.Context) (string, error) {
		return e.memory.Summarize(ctx, input, e.cfg.SummaryMaxLength)
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errEmptySummary
	}
	if err == nil {
		err = e.apply(epoch, len(batch), core.Summary{
			Text:               text,
			CoversMessageCount: covered,
			CreatedAt:          e.now(),
		})
	}

	if err != nil {
		e.bus.Emit(ctx, eventSource, events.SummaryFailed, map[string]any{
			events.KeyError:    err.Error(),
			events.KeyMessages: len(batch),
		})
		return err
	}

	tokens := e.estimator.EstimateTokens(text)
	logger.Debug().
		Int("summarized", len(batch)).
		Int("covers", covered).
		Int("tokens", tokens).
		Msg("conversation summarized")
	e.bus.Emit(ctx, eventSource, events.SummaryCompleted, map[string]any{
		events.KeyMessages: len(batch),
		events.KeyCovers:   covered,
		events.KeyTokens:   tokens,
	})
	return nil
}

// apply swaps "remove the summarized prefix, install the summary" in one step.
func (e *Engine) apply(epoch uint64, n int, summary core.Summary) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur.epoch != epoch || len(cur.raw) < n {
		return errStaleSummary
	}

	e.current.Store(&state{
		epoch:   cur.epoch,
		summary: &summary,
		raw:     slices.Clone(cur.raw[n:]),
	})
	e.version.Add(1)
	return nil
}
