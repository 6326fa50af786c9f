package core

import (
	"context"
	"iter"
)

type WorkerState int

const (
	StateUninitialized WorkerState = iota
	StateInitializing
	StateReady
	StateDegraded
	StateShuttingDown
	StateShutdown
	StateFailed
)

func (s WorkerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Usable reports whether domain operations may be dispatched in this state.
func (s WorkerState) Usable() bool {
	return s == StateReady || s == StateDegraded
}

type Health struct {
	State               WorkerState
	Healthy             bool
	ConsecutiveFailures int
	LastError           string
}

type WorkerStatus struct {
	Name      string      `json:"name"`
	State     WorkerState `json:"state"`
	LastError string      `json:"last_error,omitempty"`
}

type Worker interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	HealthCheck() Health
	Status() WorkerStatus
}

// LLMWorker streams are lazy and single-use. Breaking out of the range loop
// aborts the underlying request.
type LLMWorker interface {
	Worker
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (iter.Seq2[string, error], error)
	EstimateTokens(text string) int
}

type TTSWorker interface {
	Worker
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	SynthesizeStream(ctx context.Context, text, voice string) (iter.Seq2[[]byte, error], error)
	ListVoices(ctx context.Context) ([]Voice, error)
}

type ASRWorker interface {
	Worker
	StartListening(ctx context.Context, onTranscript func(text string)) error
	StopListening(ctx context.Context) error
}

// MemoryWorker must return an error instead of an empty summary.
type MemoryWorker interface {
	Worker
	Summarize(ctx context.Context, messages []Message, maxLength int) (string, error)
}

// TokenEstimator is the slice of LLMWorker the conversation engine needs.
type TokenEstimator interface {
	EstimateTokens(text string) int
}
