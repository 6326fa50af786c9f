package srv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingService struct {
	name  string
	mu    *sync.Mutex
	order *[]string
	err   error
}

func (s *recordingService) Start(context.Context) error { return nil }

func (s *recordingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.order = append(*s.order, s.name)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	return s.err
}

func TestShutdownNow_ReverseOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	services := []Service{
		&recordingService{name: "db", mu: &mu, order: &order},
		&recordingService{name: "engine", mu: &mu, order: &order, err: errors.New("ignored")},
		&recordingService{name: "transport", mu: &mu, order: &order},
	}

	ShutdownNow(context.Background(), services, time.Second)

	assert.Equal(t, []string{"transport", "engine", "db"}, order)
}

func TestShutdownServices_WaitsForCancel(t *testing.T) {
	var mu sync.Mutex
	var order []string
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ShutdownServices(ctx, []Service{&recordingService{name: "only", mu: &mu, order: &order}}, time.Second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	<-done
	assert.Equal(t, []string{"only"}, order)
}

func TestCleanupFunc(t *testing.T) {
	called := false
	svc := NewCleanup(func() error {
		called = true
		return nil
	})

	assert.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Shutdown(context.Background()))
	assert.True(t, called)

	var nilFn CleanupFunc
	assert.NoError(t, nilFn.Shutdown(context.Background()))
}
