package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SyncHandlersRunInSubscriptionOrder(t *testing.T) {
	for _, n := range []int{1, 2, 5, 20} {
		bus := NewBus()
		var order []int
		for i := range n {
			bus.Subscribe(TurnStarted, func(context.Context, Event) error {
				order = append(order, i)
				return nil
			})
		}

		bus.Emit(context.Background(), "test", TurnStarted, nil)

		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, order)
	}
}

func TestBus_FailingHandlerDoesNotStopOthers(t *testing.T) {
	var recorded []error
	bus := NewBus(WithErrorHook(func(err error) { recorded = append(recorded, err) }))

	ran := false
	bus.Subscribe(Error, func(context.Context, Event) error {
		return errors.New("broken handler")
	})
	bus.Subscribe(Error, func(context.Context, Event) error {
		panic("worse handler")
	})
	bus.Subscribe(Error, func(context.Context, Event) error {
		ran = true
		return nil
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), "test", Error, map[string]any{KeyError: "x"})
	})

	assert.True(t, ran)
	assert.EqualValues(t, 2, bus.HandlerErrors())
	require.Len(t, recorded, 2)

	var herr *core.EventHandlerError
	require.ErrorAs(t, recorded[0], &herr)
	assert.Equal(t, string(Error), herr.Kind)
	assert.Equal(t, 0, herr.Index)
	assert.False(t, herr.Async)
}

func TestBus_OnlyMatchingKind(t *testing.T) {
	bus := NewBus()
	var got []Kind
	bus.Subscribe(TurnStarted, func(_ context.Context, ev Event) error {
		got = append(got, ev.Kind())
		return nil
	})

	bus.Emit(context.Background(), "test", TurnCompleted, nil)
	bus.Emit(context.Background(), "test", TurnStarted, nil)

	assert.Equal(t, []Kind{TurnStarted}, got)
}

func TestBus_SubscribeDuringPublishAppliesToNextPublish(t *testing.T) {
	bus := NewBus()
	lateCalls := 0
	subscribed := false
	bus.Subscribe(UserInput, func(context.Context, Event) error {
		if !subscribed {
			subscribed = true
			bus.Subscribe(UserInput, func(context.Context, Event) error {
				lateCalls++
				return nil
			})
		}
		return nil
	})

	bus.Emit(context.Background(), "test", UserInput, nil)
	assert.Equal(t, 0, lateCalls)

	bus.Emit(context.Background(), "test", UserInput, nil)
	assert.Equal(t, 1, lateCalls)
	assert.Equal(t, 2, bus.Subscribers(UserInput))
}

func TestBus_AsyncHandlersRunConcurrentlyAndPublishWaits(t *testing.T) {
	bus := NewBus()
	var running, peak, finished atomic.Int32
	release := make(chan struct{})

	for range 3 {
		bus.SubscribeAsync(SummaryCompleted, func(context.Context, Event) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			finished.Add(1)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		bus.Emit(context.Background(), "test", SummaryCompleted, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("publish returned before async handlers completed")
	default:
	}

	close(release)
	<-done
	assert.EqualValues(t, 3, finished.Load())
	assert.EqualValues(t, 3, peak.Load())
}

func TestBus_AsyncHandlerTimeout(t *testing.T) {
	var recorded atomic.Int32
	bus := NewBus(
		WithHandlerTimeout(20*time.Millisecond),
		WithErrorHook(func(err error) {
			if errors.Is(err, context.DeadlineExceeded) {
				recorded.Add(1)
			}
		}),
	)

	block := make(chan struct{})
	defer close(block)
	fastRan := atomic.Bool{}
	bus.SubscribeAsync(PlaybackChunk, func(ctx context.Context, _ Event) error {
		select {
		case <-block:
		case <-time.After(time.Second):
		}
		return nil
	})
	bus.SubscribeAsync(PlaybackChunk, func(context.Context, Event) error {
		fastRan.Store(true)
		return nil
	})

	start := time.Now()
	bus.Emit(context.Background(), "test", PlaybackChunk, nil)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, fastRan.Load())
	assert.EqualValues(t, 1, recorded.Load())
}

func TestBus_SyncBeforeAsync(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var order []string
	bus.SubscribeAsync(TurnCompleted, func(context.Context, Event) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "async")
		return nil
	})
	bus.Subscribe(TurnCompleted, func(context.Context, Event) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "sync")
		return nil
	})

	bus.Emit(context.Background(), "test", TurnCompleted, nil)

	assert.Equal(t, []string{"sync", "async"}, order)
}

func TestBus_HandlerNeverRunsConcurrentlyWithItself(t *testing.T) {
	bus := NewBus(WithHandlerTimeout(0))
	var active, overlaps atomic.Int32
	bus.SubscribeAsync(ResponseChunk, func(context.Context, Event) error {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), "test", ResponseChunk, nil)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 0, overlaps.Load())
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), "test", TurnStarted, nil)
	})
}

func TestEvent_Immutable(t *testing.T) {
	payload := map[string]any{KeyText: "hello", KeyTokens: 3}
	ev := New("llm", ResponseCompleted, payload)

	payload[KeyText] = "changed"
	got := ev.Payload()
	got[KeyText] = "changed again"

	assert.Equal(t, "hello", ev.Str(KeyText))
	assert.Equal(t, 3, ev.Int(KeyTokens))
	assert.Equal(t, "llm", ev.Source())
	assert.Equal(t, ResponseCompleted, ev.Kind())
	assert.False(t, ev.Timestamp().IsZero())
	assert.NotEqual(t, ev.ID(), New("llm", ResponseCompleted, nil).ID())

	_, ok := ev.Value("missing")
	assert.False(t, ok)
	assert.Empty(t, ev.Str(KeyTokens))
}
