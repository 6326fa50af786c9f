package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

const DefaultHandlerTimeout = 5 * time.Second

type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	index   int
	handler Handler
	async   bool
	// serializes invocations of one handler across concurrent publishes
	mu sync.Mutex
}

type Option func(*Bus)

// WithHandlerTimeout bounds how long Publish waits for each async handler.
// A non-positive value waits indefinitely.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) { b.timeout = d }
}

// WithErrorHook receives every recorded *core.EventHandlerError.
func WithErrorHook(fn func(error)) Option {
	return func(b *Bus) { b.onError = fn }
}

// Bus is an in-process publish/subscribe hub. Subscriber lists are copy-on-write,
// so a subscription made while publishing takes effect from the next Publish.
//
// A handler must not synchronously publish an event of a kind it is itself
// subscribed to.
type Bus struct {
	mu        sync.RWMutex
	syncSubs  map[Kind][]*subscription
	asyncSubs map[Kind][]*subscription

	timeout  time.Duration
	onError  func(error)
	failures atomic.Int64
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		syncSubs:  make(map[Kind][]*subscription),
		asyncSubs: make(map[Kind][]*subscription),
		timeout:   DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.add(b.syncSubs, kind, handler, false)
}

func (b *Bus) SubscribeAsync(kind Kind, handler Handler) {
	b.add(b.asyncSubs, kind, handler, true)
}

func (b *Bus) add(set map[Kind][]*subscription, kind Kind, handler Handler, async bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := set[kind]
	next := make([]*subscription, len(old), len(old)+1)
	copy(next, old)
	set[kind] = append(next, &subscription{index: len(old), handler: handler, async: async})
}

// Publish runs the sync handlers of ev.Kind() in subscription order, then runs
// the async handlers concurrently and waits for each to finish or time out.
// Handler failures are recorded, never returned.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	syncSubs := b.syncSubs[ev.kind]
	asyncSubs := b.asyncSubs[ev.kind]
	b.mu.RUnlock()

	for _, s := range syncSubs {
		s.mu.Lock()
		err := invoke(ctx, s.handler, ev)
		s.mu.Unlock()
		if err != nil {
			b.record(ctx, ev.kind, s, err)
		}
	}

	if len(asyncSubs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range asyncSubs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.runAsync(ctx, s, ev)
		}()
	}
	wg.Wait()
}

func (b *Bus) runAsync(ctx context.Context, s *subscription, ev Event) {
	hctx, cancel := ctx, context.CancelFunc(func() {})
	if b.timeout > 0 {
		hctx, cancel = context.WithTimeout(ctx, b.timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// abandoned while waiting for the previous invocation
		if err := hctx.Err(); err != nil {
			done <- err
			return
		}
		done <- invoke(hctx, s.handler, ev)
	}()

	select {
	case err := <-done:
		if err != nil {
			b.record(ctx, ev.kind, s, err)
		}
	case <-hctx.Done():
		b.record(ctx, ev.kind, s, hctx.Err())
	}
}

func invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

func (b *Bus) record(ctx context.Context, kind Kind, s *subscription, err error) {
	herr := &core.EventHandlerError{Kind: string(kind), Index: s.index, Async: s.async, Err: err}
	b.failures.Add(1)

	log.FromCtx(ctx).Warn().
		Err(err).
		Str("kind", string(kind)).
		Int("handler", s.index).
		Bool("async", s.async).
		Msg("event handler failed")

	if b.onError != nil {
		b.onError(herr)
	}
}

// HandlerErrors reports how many handler failures have been recorded.
func (b *Bus) HandlerErrors() int64 {
	return b.failures.Load()
}

func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.syncSubs[kind]) + len(b.asyncSubs[kind])
}

// Emit is shorthand for Publish(ctx, New(source, kind, payload)). A nil Bus drops the event.
func (b *Bus) Emit(ctx context.Context, source string, kind Kind, payload map[string]any) {
	if b == nil {
		return
	}
	b.Publish(ctx, New(source, kind, payload))
}
