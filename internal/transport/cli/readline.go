package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/service/command"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/sandevgo/mythic/pkg/log"
)

const (
	dim   = "\033[38;5;240m"
	reset = "\033[0m"
)

// Session runs conversational turns.
type Session interface {
	HandleInput(ctx context.Context, text string) (orchestrator.TurnResult, error)
}

type ReadLine struct {
	session Session
	router  *command.Router
	rl      *readline.Instance

	mu       sync.Mutex
	out      io.Writer
	streamed bool
}

func NewReadLine(session Session, router *command.Router, bus *events.Bus, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	r := newReadLine(session, router, rl.Stdout())
	r.rl = rl
	r.subscribe(bus)
	return r, nil
}

func newReadLine(session Session, router *command.Router, out io.Writer) *ReadLine {
	return &ReadLine{session: session, router: router, out: out}
}

// subscribe prints turn output from the bus, so turns started by speech
// recognition show up as well.
func (r *ReadLine) subscribe(bus *events.Bus) {
	bus.Subscribe(events.ResponseChunk, func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.streamed = true
		_, err := fmt.Fprint(r.out, ev.Str(events.KeyText))
		return err
	})
	bus.Subscribe(events.ResponseCompleted, func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.streamed {
			r.streamed = false
			_, err := fmt.Fprintln(r.out)
			return err
		}
		_, err := fmt.Fprintln(r.out, ev.Str(events.KeyResponse))
		return err
	})
	bus.Subscribe(events.ResponseFallback, func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.streamed {
			r.streamed = false
			fmt.Fprintln(r.out)
		}
		_, err := fmt.Fprintln(r.out, ev.Str(events.KeyResponse))
		return err
	})
	bus.Subscribe(events.SummaryCompleted, func(_ context.Context, ev events.Event) error {
		r.printf("%s[memory] summarized %d messages, summary covers %d%s\n",
			dim, ev.Int(events.KeyMessages), ev.Int(events.KeyCovers), reset)
		return nil
	})
}

func (r *ReadLine) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("ReadLine chat started. Type 'exit' to quit, '/help' for commands.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if quit := r.handleLine(ctx, line); quit {
			return nil
		}
	}
}

// handleLine runs one chat command or turn and reports whether to quit.
func (r *ReadLine) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "exit", "/exit":
		return true
	}

	if result, ok := r.router.Execute(ctx, line); ok {
		r.printf("%s%s%s\n", dim, strings.TrimSpace(result), reset)
		return false
	}

	// Output is printed by the bus subscribers; failures already produced a fallback.
	if _, err := r.session.HandleInput(ctx, line); err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("turn failed")
	}
	return false
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
