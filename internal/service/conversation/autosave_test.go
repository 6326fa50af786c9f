package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu    sync.Mutex
	data  map[string]core.Transcript
	saves int
	err   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{data: make(map[string]core.Transcript)}
}

func (r *memoryRepo) Save(_ context.Context, id string, t core.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.data[id] = t
	r.saves++
	return nil
}

func (r *memoryRepo) Load(_ context.Context, id string) (core.Transcript, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	return t, ok, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func (r *memoryRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func TestSaver_SavesOnlyChanges(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	repo := newMemoryRepo()
	s := NewSaver(e, repo, "local", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SaveNow(ctx))
	assert.Equal(t, 0, repo.Saves())

	e.Append(core.RoleUser, "remember this")
	require.NoError(t, s.SaveNow(ctx))
	require.NoError(t, s.SaveNow(ctx))
	assert.Equal(t, 1, repo.Saves())

	stored, ok, err := repo.Load(ctx, "local")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "remember this", stored.RawMessages[0].Text)
}

func TestSaver_SaveError(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	repo := newMemoryRepo()
	repo.err = errors.New("disk full")
	s := NewSaver(e, repo, "local", time.Minute)

	e.Append(core.RoleUser, "hello")

	assert.ErrorContains(t, s.SaveNow(context.Background()), "disk full")
}

func TestSaver_Restore(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	require.NoError(t, repo.Save(ctx, "local", core.Transcript{
		Summaries:   []core.Summary{{Text: "earlier chat", CoversMessageCount: 6}},
		RawMessages: []core.Message{{Role: core.RoleUser, Text: "hi there", TokenCount: 2}},
	}))

	e := newTestEngine(t, nil, nil)
	s := NewSaver(e, repo, "local", time.Minute)

	ok, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, e.Stats().SummarizedMessages)

	// restoring does not count as a change
	require.NoError(t, s.SaveNow(ctx))
	assert.Equal(t, 1, repo.Saves())

	missing := NewSaver(e, repo, "other", time.Minute)
	ok, err = missing.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaver_TickerAndShutdown(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	repo := newMemoryRepo()
	s := NewSaver(e, repo, "local", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	e.Append(core.RoleUser, "tick")
	require.Eventually(t, func() bool { return repo.Saves() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	e.Append(core.RoleAssistant, "tock")
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 2, repo.Saves())
}
