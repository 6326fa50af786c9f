package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/conv"
	"github.com/sandevgo/mythic/pkg/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const originDirect = "direct"

var errEmptyResponse = errors.New("empty response after cleanup")

// TurnResult describes a completed turn.
type TurnResult struct {
	TurnID   string
	Response string
	// Spoken is set when the response was synthesized.
	Spoken bool
}

// HandleInput runs one turn for text. Turns are serialized. A failed turn
// publishes error, turn.failed and (when no response was delivered)
// response.fallback, then returns the classified error.
func (o *Orchestrator) HandleInput(ctx context.Context, text string) (TurnResult, error) {
	if !o.beginTurn() {
		if o.isStopped() {
			return TurnResult{}, ErrStopped
		}
		return TurnResult{}, ErrNotStarted
	}
	defer o.turns.Done()
	return o.runTurn(ctx, text, originDirect)
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

func (o *Orchestrator) runTurn(ctx context.Context, text, origin string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyInput
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	if o.ctx.Err() != nil {
		return TurnResult{}, ErrStopped
	}

	// Shutdown cancels o.ctx, which must abort the turn whatever ctx the caller passed.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	t := &turn{
		o:      o,
		id:     uuid.NewString(),
		origin: origin,
	}
	ctx, t.span = tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("turn.id", t.id),
		attribute.String("turn.origin", origin),
	))
	defer t.span.End()
	t.emitCtx = context.WithoutCancel(ctx)

	res, err := t.run(ctx, text)
	if err != nil {
		return res, t.fail(err)
	}

	o.completed.Add(1)
	o.turnCount.Add(t.emitCtx, 1, metric.WithAttributes(attribute.String("outcome", "completed")))
	o.setState(StateIdle)
	t.emit(events.TurnCompleted, map[string]any{events.KeyResponse: res.Response})
	return res, nil
}

type turn struct {
	o         *Orchestrator
	id        string
	origin    string
	span      trace.Span
	emitCtx   context.Context
	delivered bool
}

func (t *turn) emit(kind events.Kind, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any, 1)
	}
	payload[events.KeyTurnID] = t.id
	t.o.bus.Emit(t.emitCtx, eventSource, kind, payload)
}

func (t *turn) run(ctx context.Context, text string) (TurnResult, error) {
	o := t.o
	res := TurnResult{TurnID: t.id}

	t.emit(events.TurnStarted, map[string]any{
		events.KeyInput:  text,
		events.KeyOrigin: t.origin,
	})
	o.setState(StateAwaitingLLM)

	o.engine.Append(core.RoleUser, text)
	prompt, err := o.engine.AssemblePrompt(o.cfg.Budget)
	if err != nil {
		return res, err
	}
	t.span.SetAttributes(attribute.Int("prompt.tokens", o.llm.EstimateTokens(prompt)))

	if err := o.ensureUsable(ctx, o.llm); err != nil {
		return res, err
	}

	var raw string
	if o.cfg.Stream {
		raw, err = t.generateStream(ctx, prompt)
	} else {
		raw, err = worker.Call(ctx, o.cfg.OperationTimeout, func(ctx context.Context) (string, error) {
			return o.llm.Generate(ctx, prompt, o.cfg.Generate)
		})
	}
	if err != nil {
		return res, operationError(o.llm, "generate", err)
	}

	response := cleanResponse(raw)
	if response == "" {
		return res, operationError(o.llm, "generate", errEmptyResponse)
	}

	o.engine.Append(core.RoleAssistant, response)
	res.Response = response
	t.delivered = true
	t.emit(events.ResponseCompleted, map[string]any{events.KeyResponse: response})

	if o.tts == nil {
		return res, nil
	}
	spoken, err := t.speak(ctx, response)
	res.Spoken = spoken
	return res, err
}

// ensureUsable gives a Failed or uninitialized worker one more
// initialization attempt before the call.
func (o *Orchestrator) ensureUsable(ctx context.Context, w core.Worker) error {
	if w.HealthCheck().State.Usable() {
		return nil
	}
	_, err := worker.Call(ctx, o.cfg.OperationTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.Initialize(ctx)
	})
	return err
}

func (t *turn) generateStream(ctx context.Context, prompt string) (string, error) {
	o := t.o
	return worker.Call(ctx, o.cfg.OperationTimeout, func(ctx context.Context) (string, error) {
		seq, err := o.llm.GenerateStream(ctx, prompt, o.cfg.Generate)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for chunk, err := range seq {
			if err != nil {
				return "", err
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			b.WriteString(chunk)
			t.emit(events.ResponseChunk, map[string]any{events.KeyText: chunk})
		}
		return b.String(), nil
	})
}

// speak synthesizes response unless the TTS worker is not healthy.
func (t *turn) speak(ctx context.Context, response string) (bool, error) {
	o := t.o
	if h := o.tts.HealthCheck(); h.State != core.StateReady {
		t.emit(events.PlaybackSkipped, map[string]any{events.KeyReason: h.State.String()})
		return false, nil
	}
	speech := conv.MarkdownToSpeech(response)
	if speech == "" {
		t.emit(events.PlaybackSkipped, map[string]any{events.KeyReason: "empty"})
		return false, nil
	}

	o.setState(StateAwaitingTTS)
	ctx, span := tracer.Start(ctx, "orchestrator.speak")
	defer span.End()

	t.emit(events.PlaybackStarted, map[string]any{
		events.KeyText:  speech,
		events.KeyVoice: o.cfg.Voice,
	})

	total, err := worker.Call(ctx, o.cfg.OperationTimeout, func(ctx context.Context) (int, error) {
		seq, err := o.tts.SynthesizeStream(ctx, speech, o.cfg.Voice)
		if err != nil {
			return 0, err
		}
		n := 0
		for chunk, err := range seq {
			if err != nil {
				return n, err
			}
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			n += len(chunk)
			t.emit(events.PlaybackChunk, map[string]any{events.KeyAudio: chunk})
		}
		return n, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, operationError(o.tts, "synthesize", err)
	}

	span.SetAttributes(attribute.Int("audio.bytes", total))
	t.emit(events.PlaybackEnded, map[string]any{events.KeyBytes: total})
	return true, nil
}

func (t *turn) fail(err error) error {
	o := t.o
	o.setState(StateError)

	kind := core.KindOf(err)
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
	t.span.SetAttributes(attribute.String("error.kind", kind))

	log.FromCtx(t.emitCtx).Warn().
		Err(err).
		Str("turn_id", t.id).
		Str("kind", kind).
		Msg("turn failed")

	t.emit(events.Error, map[string]any{
		events.KeyErrorKind: kind,
		events.KeyError:     err.Error(),
	})
	t.emit(events.TurnFailed, map[string]any{events.KeyErrorKind: kind})
	if !t.delivered {
		t.emit(events.ResponseFallback, map[string]any{events.KeyResponse: o.cfg.FallbackText})
	}

	o.failed.Add(1)
	o.turnCount.Add(t.emitCtx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
	o.setState(StateIdle)
	return err
}

// operationError attributes err to w unless it already carries a worker
// classification.
func operationError(w core.Worker, op string, err error) error {
	var (
		opErr   *core.WorkerOperationError
		initErr *core.WorkerInitializationError
	)
	if errors.As(err, &opErr) || errors.As(err, &initErr) {
		return err
	}
	return &core.WorkerOperationError{Worker: w.Name(), Op: op, Err: err}
}

var artifactTokens = []string{"</s>", "<s>", "<|endoftext|>"}

// cleanResponse strips chat template artifacts and anything after the model
// starts writing the next user line.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	for _, tok := range artifactTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	if i := strings.Index(s, "<|"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "\nUser:"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Assistant:"))
	return s
}
