package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindWorkerInitialization   = "worker_initialization"
	KindWorkerOperation        = "worker_operation"
	KindUnregisteredCapability = "unregistered_capability"
	KindCircularDependency     = "circular_dependency"
	KindEventHandler           = "event_handler"
	KindContextOverflow        = "context_overflow"
	KindUnknown                = "unknown"
)

type WorkerInitializationError struct {
	Worker string
	Err    error
}

func (e *WorkerInitializationError) Error() string {
	return fmt.Sprintf("worker %s failed to initialize: %v", e.Worker, e.Err)
}

func (e *WorkerInitializationError) Unwrap() error { return e.Err }

type WorkerOperationError struct {
	Worker string
	Op     string
	Err    error
}

func (e *WorkerOperationError) Error() string {
	return fmt.Sprintf("worker %s: %s: %v", e.Worker, e.Op, e.Err)
}

func (e *WorkerOperationError) Unwrap() error { return e.Err }

type UnregisteredCapabilityError struct {
	Capability string
}

func (e *UnregisteredCapabilityError) Error() string {
	return fmt.Sprintf("no registration for capability %s", e.Capability)
}

type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Chain, " -> ")
}

type EventHandlerError struct {
	Kind  string
	Index int
	Async bool
	Err   error
}

func (e *EventHandlerError) Error() string {
	mode := "sync"
	if e.Async {
		mode = "async"
	}
	return fmt.Sprintf("%s handler #%d for %q: %v", mode, e.Index, e.Kind, e.Err)
}

func (e *EventHandlerError) Unwrap() error { return e.Err }

// ContextOverflowError means even an empty recent window cannot fit the budget.
type ContextOverflowError struct {
	TotalTokens    int
	SystemReserve  int
	SummaryReserve int
}

func (e *ContextOverflowError) Error() string {
	return fmt.Sprintf("system reserve %d + summary reserve %d exceeds total budget %d",
		e.SystemReserve, e.SummaryReserve, e.TotalTokens)
}

// KindOf classifies err into the error taxonomy used by events and logs.
func KindOf(err error) string {
	var (
		initErr     *WorkerInitializationError
		opErr       *WorkerOperationError
		unregErr    *UnregisteredCapabilityError
		cycleErr    *CircularDependencyError
		handlerErr  *EventHandlerError
		overflowErr *ContextOverflowError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cycleErr):
		return KindCircularDependency
	case errors.As(err, &unregErr):
		return KindUnregisteredCapability
	case errors.As(err, &overflowErr):
		return KindContextOverflow
	case errors.As(err, &initErr):
		return KindWorkerInitialization
	case errors.As(err, &opErr):
		return KindWorkerOperation
	case errors.As(err, &handlerErr):
		return KindEventHandler
	default:
		return KindUnknown
	}
}
