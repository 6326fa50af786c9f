package srv

import "context"

// CleanupFunc adapts a close function to a Service with a no-op Start.
type CleanupFunc func() error

func (f CleanupFunc) Start(context.Context) error { return nil }

func (f CleanupFunc) Shutdown(context.Context) error {
	if f == nil {
		return nil
	}
	return f()
}

func NewCleanup(fn func() error) Service {
	return CleanupFunc(fn)
}
