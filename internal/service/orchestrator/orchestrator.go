package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandevgo/mythic/internal/container"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/service/conversation"
	"github.com/sandevgo/mythic/pkg/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"
)

const eventSource = "orchestrator"

var (
	ErrNotStarted = errors.New("orchestrator not started")
	ErrStopped    = errors.New("orchestrator stopped")
	ErrEmptyInput = errors.New("empty input")
)

// Orchestrator drives conversational turns over the workers registered in
// the container. Only one turn runs at a time.
type Orchestrator struct {
	cfg       Config
	container *container.Container
	bus       *events.Bus

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	turns   sync.WaitGroup

	turnMu sync.Mutex
	state  atomic.Int32

	engine  *conversation.Engine
	llm     core.LLMWorker
	memory  core.MemoryWorker
	tts     core.TTSWorker
	asr     core.ASRWorker
	workers []core.Worker

	startedAt time.Time
	completed atomic.Int64
	failed    atomic.Int64
	turnCount metric.Int64Counter

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(cfg Config, c *container.Container, bus *events.Bus) *Orchestrator {
	if cfg.FallbackText == "" {
		cfg.FallbackText = DefaultFallbackText
	}
	counter, err := meter.Int64Counter("mythic.turns", metric.WithDescription("Finished conversational turns"))
	if err != nil {
		counter = noop.Int64Counter{}
	}
	return &Orchestrator{
		cfg:       cfg,
		container: c,
		bus:       bus,
		turnCount: counter,
	}
}

// Start resolves and initializes the workers and builds the conversation
// engine. Any returned error is a startup failure.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	if o.started {
		return nil
	}

	if err := o.cfg.validate(); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}

	ctx = log.WithComponent(ctx, eventSource)
	logger := log.FromCtx(ctx)

	// A failed attempt leaves its workers attached for Shutdown; a retry
	// resolves the same singletons again.
	if o.cancel != nil {
		o.cancel()
	}
	o.workers = nil
	o.memory, o.tts, o.asr = nil, nil, nil
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))

	llm, err := container.ResolveContext[core.LLMWorker](ctx, o.container)
	if err != nil {
		return fmt.Errorf("resolve llm worker: %w", err)
	}
	o.llm = llm
	o.workers = append(o.workers, llm)
	if err := llm.Initialize(ctx); err != nil {
		return err
	}

	if o.memory, err = resolveOptional[core.MemoryWorker](ctx, o); err != nil {
		return err
	}
	if o.cfg.EnableTTS {
		if o.tts, err = resolveOptional[core.TTSWorker](ctx, o); err != nil {
			return err
		}
	}
	if o.asr, err = resolveOptional[core.ASRWorker](ctx, o); err != nil {
		return err
	}

	engine, err := conversation.NewEngine(o.ctx, o.cfg.Conversation, llm, o.memory, o.bus)
	if err != nil {
		return err
	}
	o.engine = engine

	o.bus.SubscribeAsync(events.UserInput, o.onUserInput)

	if o.asr != nil && o.asr.HealthCheck().State.Usable() {
		if err := o.asr.StartListening(o.ctx, o.publishTranscript); err != nil {
			logger.Warn().Err(err).Msg("speech recognition unavailable")
		}
	}

	o.started = true
	o.startedAt = time.Now()
	logger.Info().
		Bool("memory", o.memory != nil).
		Bool("tts", o.tts != nil).
		Bool("asr", o.asr != nil).
		Bool("stream", o.cfg.Stream).
		Msg("orchestrator started")
	return nil
}

// resolveOptional returns nil when T is not registered. A worker that fails
// to initialize stays attached in Failed state and is skipped by health
// checks; container misconfiguration is still fatal.
func resolveOptional[T core.Worker](ctx context.Context, o *Orchestrator) (T, error) {
	var zero T
	w, err := container.ResolveContext[T](ctx, o.container)
	if err != nil {
		var unreg *core.UnregisteredCapabilityError
		if errors.As(err, &unreg) {
			log.FromCtx(ctx).Info().Str("capability", unreg.Capability).Msg("optional worker not registered")
			return zero, nil
		}
		return zero, err
	}

	o.workers = append(o.workers, w)
	if err := w.Initialize(ctx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("worker", w.Name()).Msg("optional worker disabled")
	}
	return w, nil
}

func (o *Orchestrator) publishTranscript(text string) {
	o.bus.Emit(o.ctx, eventSource, events.UserInput, map[string]any{
		events.KeyText:   text,
		events.KeyOrigin: "asr",
	})
}

// onUserInput runs the turn outside the handler so the bus handler timeout
// does not bound it.
func (o *Orchestrator) onUserInput(_ context.Context, ev events.Event) error {
	text := ev.Str(events.KeyText)
	origin := ev.Str(events.KeyOrigin)
	if !o.beginTurn() {
		return ErrStopped
	}
	go func() {
		defer o.turns.Done()
		_, _ = o.runTurn(o.ctx, text, origin)
	}()
	return nil
}

// beginTurn registers a turn unless the orchestrator is stopping.
func (o *Orchestrator) beginTurn() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started || o.stopped {
		return false
	}
	o.turns.Add(1)
	return true
}

func (o *Orchestrator) State() TurnState {
	return TurnState(o.state.Load())
}

func (o *Orchestrator) setState(s TurnState) {
	o.state.Store(int32(s))
}

// Engine returns the conversation engine, nil before Start.
func (o *Orchestrator) Engine() *conversation.Engine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engine
}

// FallbackText is the reply published when a turn fails before delivering one.
func (o *Orchestrator) FallbackText() string {
	return o.cfg.FallbackText
}

type Report struct {
	Turn           TurnState
	StartedAt      time.Time
	Uptime         time.Duration
	Workers        []core.WorkerStatus
	Health         map[string]core.Health
	Conversation   conversation.Stats
	CompletedTurns int64
	FailedTurns    int64
	HandlerErrors  int64
	Capabilities   []string
}

func (o *Orchestrator) Status() Report {
	o.mu.Lock()
	workers := o.workers
	engine := o.engine
	startedAt := o.startedAt
	o.mu.Unlock()

	r := Report{
		Turn:           o.State(),
		Health:         make(map[string]core.Health, len(workers)),
		CompletedTurns: o.completed.Load(),
		FailedTurns:    o.failed.Load(),
		HandlerErrors:  o.bus.HandlerErrors(),
		Capabilities:   o.container.Capabilities(),
	}
	if !startedAt.IsZero() {
		r.StartedAt = startedAt
		r.Uptime = time.Since(startedAt)
	}
	for _, w := range workers {
		r.Workers = append(r.Workers, w.Status())
		r.Health[w.Name()] = w.HealthCheck()
	}
	if engine != nil {
		r.Conversation = engine.Stats()
	}
	return r
}

// Shutdown cancels in-flight worker operations, waits for the running turn
// and summarization, then shuts every worker down concurrently. The whole
// sequence is bounded by the shutdown timeout. It is idempotent.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.shutdownOnce.Do(func() {
		o.shutdownErr = o.shutdown(ctx)
	})
	return o.shutdownErr
}

func (o *Orchestrator) shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	started := o.started
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	if !started && len(o.workers) == 0 {
		return nil
	}

	timeout := o.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	logger := log.FromCtx(ctx)

	if o.asr != nil && o.asr.HealthCheck().State.Usable() {
		if err := o.asr.StopListening(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to stop listening")
		}
	}

	var errs []error
	if err := waitGroup(ctx, &o.turns); err != nil {
		errs = append(errs, fmt.Errorf("waiting for turns: %w", err))
	}
	if o.engine != nil {
		if err := o.engine.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range o.workers {
		g.Go(func() error {
			return w.Shutdown(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("shutdown timed out: %w", err))
	}

	logger.Info().
		Int64("completed_turns", o.completed.Load()).
		Int64("failed_turns", o.failed.Load()).
		Msg("orchestrator stopped")
	return errors.Join(errs...)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
