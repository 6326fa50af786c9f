package orchestrator

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/worker"
)

type fakeLLM struct {
	*worker.Lifecycle

	mu      sync.Mutex
	prompts []string
	reply   string
	chunks  []string
	err     error
	block   chan struct{}
}

func newFakeLLM(reply string) *fakeLLM {
	return &fakeLLM{
		Lifecycle: worker.New("llm", worker.Hooks{}),
		reply:     reply,
	}
}

func (f *fakeLLM) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ core.GenerateOptions) (string, error) {
	if err := f.Check("generate"); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	reply, err, block := f.reply, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", f.Track("generate", ctx.Err())
		}
	}
	return reply, f.Track("generate", err)
}

func (f *fakeLLM) GenerateStream(_ context.Context, prompt string, _ core.GenerateOptions) (iter.Seq2[string, error], error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	chunks := f.chunks
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}, nil
}

func (f *fakeLLM) EstimateTokens(text string) int { return len(strings.Fields(text)) }

type fakeTTS struct {
	*worker.Lifecycle

	mu    sync.Mutex
	texts []string
	audio [][]byte
	err   error
}

func newFakeTTS(audio ...[]byte) *fakeTTS {
	return &fakeTTS{Lifecycle: worker.New("tts", worker.Hooks{}, worker.WithDegradeAfter(1)), audio: audio}
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	seq, err := f.SynthesizeStream(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	var out []byte
	for chunk, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (f *fakeTTS) SynthesizeStream(_ context.Context, text, _ string) (iter.Seq2[[]byte, error], error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	audio, err := f.audio, f.err
	f.mu.Unlock()
	if err != nil {
		return nil, f.Track("synthesize", err)
	}
	return func(yield func([]byte, error) bool) {
		for _, a := range audio {
			if !yield(a, nil) {
				return
			}
		}
	}, nil
}

func (f *fakeTTS) ListVoices(context.Context) ([]core.Voice, error) {
	return []core.Voice{{ID: "alloy", Name: "alloy"}}, nil
}

type fakeASR struct {
	*worker.Lifecycle

	mu           sync.Mutex
	onTranscript func(string)
	stopped      bool
}

func newFakeASR() *fakeASR {
	return &fakeASR{Lifecycle: worker.New("asr", worker.Hooks{})}
}

func (f *fakeASR) StartListening(_ context.Context, onTranscript func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTranscript = onTranscript
	return nil
}

func (f *fakeASR) StopListening(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeASR) hear(text string) {
	f.mu.Lock()
	cb := f.onTranscript
	f.mu.Unlock()
	cb(text)
}

type fakeMemory struct {
	*worker.Lifecycle
}

func (m *fakeMemory) Summarize(context.Context, []core.Message, int) (string, error) {
	return "summary", nil
}
