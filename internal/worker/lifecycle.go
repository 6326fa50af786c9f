// Package worker implements the lifecycle state machine shared by every
// worker. Workers embed a *Lifecycle and delegate Initialize, Shutdown,
// HealthCheck and Status to it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

const DefaultDegradeAfter = 3

var (
	ErrShutdown = errors.New("worker is shut down")
	ErrNotReady = errors.New("worker is not ready")
)

type Hooks struct {
	// Init acquires resources. It runs once per initialization attempt.
	Init func(ctx context.Context) error
	// Close releases resources. Errors are logged, never returned.
	Close func(ctx context.Context) error
}

type Transition struct {
	Worker string
	From   core.WorkerState
	To     core.WorkerState
	Err    error
}

type Option func(*Lifecycle)

// WithDegradeAfter sets how many consecutive operation failures move a Ready
// worker to Degraded. Zero disables degradation.
func WithDegradeAfter(n int) Option {
	return func(l *Lifecycle) { l.degradeAfter = n }
}

func WithTransitionHook(fn func(Transition)) Option {
	return func(l *Lifecycle) { l.observers = append(l.observers, fn) }
}

type initCall struct {
	done chan struct{}
	err  error
}

type Lifecycle struct {
	name         string
	hooks        Hooks
	degradeAfter int
	observers    []func(Transition)

	mu       sync.Mutex
	state    core.WorkerState
	lastErr  error
	failures int
	inflight *initCall
}

func New(name string, hooks Hooks, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		name:         name,
		hooks:        hooks,
		degradeAfter: DefaultDegradeAfter,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Name() string { return l.name }

// OnTransition registers an observer for state changes. Observers run outside
// the lifecycle lock, in registration order.
func (l *Lifecycle) OnTransition(fn func(Transition)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Initialize moves the worker to Ready. Concurrent calls share one attempt.
// A Failed worker may be initialized again.
func (l *Lifecycle) Initialize(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.state.Usable():
		l.mu.Unlock()
		return nil
	case l.state == core.StateShuttingDown || l.state == core.StateShutdown:
		l.mu.Unlock()
		return &core.WorkerInitializationError{Worker: l.name, Err: ErrShutdown}
	case l.inflight != nil:
		call := l.inflight
		l.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return &core.WorkerInitializationError{Worker: l.name, Err: ctx.Err()}
		}
	}

	call := &initCall{done: make(chan struct{})}
	l.inflight = call
	tr := l.setLocked(core.StateInitializing, nil)
	l.mu.Unlock()
	l.notify(tr)

	logger := log.FromCtx(ctx)
	logger.Debug().Str("worker", l.name).Msg("initializing worker")

	err := l.run(ctx, l.hooks.Init)

	l.mu.Lock()
	tr = nil
	if err != nil {
		call.err = &core.WorkerInitializationError{Worker: l.name, Err: err}
	}
	if l.state == core.StateInitializing {
		if err != nil {
			tr = l.setLocked(core.StateFailed, err)
		} else {
			l.failures = 0
			l.lastErr = nil
			tr = l.setLocked(core.StateReady, nil)
		}
	} else if err == nil {
		// shut down while initializing
		call.err = &core.WorkerInitializationError{Worker: l.name, Err: ErrShutdown}
	}
	l.inflight = nil
	close(call.done)
	l.mu.Unlock()
	l.notify(tr)

	if call.err != nil {
		logger.Error().Err(call.err).Str("worker", l.name).Msg("worker failed to initialize")
		return call.err
	}
	logger.Info().Str("worker", l.name).Msg("worker ready")
	return nil
}

// Shutdown releases resources. It is safe from any state, idempotent, and
// never returns an error; Close failures are logged.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	l.mu.Lock()
	if call := l.inflight; call != nil {
		l.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
		}
		l.mu.Lock()
	}

	if l.state == core.StateShutdown || l.state == core.StateShuttingDown {
		l.mu.Unlock()
		return nil
	}
	needClose := l.state != core.StateUninitialized
	tr := l.setLocked(core.StateShuttingDown, nil)
	l.mu.Unlock()
	l.notify(tr)

	if needClose {
		if err := l.run(ctx, l.hooks.Close); err != nil {
			logger.Warn().Err(err).Str("worker", l.name).Msg("worker cleanup failed")
			l.mu.Lock()
			l.lastErr = err
			l.mu.Unlock()
		}
	}

	l.mu.Lock()
	tr = l.setLocked(core.StateShutdown, nil)
	l.mu.Unlock()
	l.notify(tr)

	logger.Debug().Str("worker", l.name).Msg("worker shut down")
	return nil
}

// Track records the outcome of a domain operation and returns err wrapped as
// a *core.WorkerOperationError.
func (l *Lifecycle) Track(op string, err error) error {
	l.mu.Lock()
	var tr *Transition
	if err == nil {
		l.failures = 0
		if l.state == core.StateDegraded {
			l.lastErr = nil
			tr = l.setLocked(core.StateReady, nil)
		}
	} else {
		l.failures++
		l.lastErr = err
		if l.state == core.StateReady && l.degradeAfter > 0 && l.failures >= l.degradeAfter {
			tr = l.setLocked(core.StateDegraded, err)
		}
	}
	l.mu.Unlock()
	l.notify(tr)

	if err == nil {
		return nil
	}
	var opErr *core.WorkerOperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &core.WorkerOperationError{Worker: l.name, Op: op, Err: err}
}

// Check returns an operation error unless the worker is Ready or Degraded.
func (l *Lifecycle) Check(op string) error {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	if state.Usable() {
		return nil
	}
	return &core.WorkerOperationError{
		Worker: l.name,
		Op:     op,
		Err:    fmt.Errorf("%w: %s", ErrNotReady, state),
	}
}

func (l *Lifecycle) State() core.WorkerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// HealthCheck is read-only and never blocks on initialization.
func (l *Lifecycle) HealthCheck() core.Health {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := core.Health{
		State:               l.state,
		Healthy:             l.state == core.StateReady,
		ConsecutiveFailures: l.failures,
	}
	if l.lastErr != nil {
		h.LastError = l.lastErr.Error()
	}
	return h
}

func (l *Lifecycle) Status() core.WorkerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := core.WorkerStatus{Name: l.name, State: l.state}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	return s
}

func (l *Lifecycle) setLocked(to core.WorkerState, err error) *Transition {
	from := l.state
	if from == to {
		return nil
	}
	l.state = to
	if err != nil {
		l.lastErr = err
	}
	return &Transition{Worker: l.name, From: from, To: to, Err: err}
}

func (l *Lifecycle) notify(tr *Transition) {
	if tr == nil {
		return
	}
	l.mu.Lock()
	observers := l.observers
	l.mu.Unlock()

	for _, fn := range observers {
		fn(*tr)
	}
}

func (l *Lifecycle) run(ctx context.Context, fn func(context.Context) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
