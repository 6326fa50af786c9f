package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

// Saver periodically persists the engine transcript for one session and
// saves a final time on shutdown.
type Saver struct {
	engine    *Engine
	repo      core.TranscriptRepository
	sessionID string
	interval  time.Duration

	mu    sync.Mutex
	saved uint64
}

func NewSaver(engine *Engine, repo core.TranscriptRepository, sessionID string, interval time.Duration) *Saver {
	return &Saver{
		engine:    engine,
		repo:      repo,
		sessionID: sessionID,
		interval:  interval,
	}
}

// Restore loads the stored transcript into the engine.
func (s *Saver) Restore(ctx context.Context) (bool, error) {
	t, ok, err := s.repo.Load(ctx, s.sessionID)
	if err != nil {
		return false, fmt.Errorf("load transcript: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.engine.Import(t); err != nil {
		return false, fmt.Errorf("import transcript: %w", err)
	}

	s.mu.Lock()
	s.saved = s.engine.Version()
	s.mu.Unlock()

	log.FromCtx(ctx).Info().
		Str("session", s.sessionID).
		Int("messages", len(t.RawMessages)).
		Int("summaries", len(t.Summaries)).
		Msg("conversation restored")
	return true, nil
}

func (s *Saver) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if s.interval <= 0 {
		logger.Debug().Msg("autosave disabled")
		return nil
	}
	logger.Info().Dur("interval", s.interval).Msg("starting conversation autosave")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SaveNow(ctx); err != nil {
				logger.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}

func (s *Saver) Shutdown(ctx context.Context) error {
	return s.SaveNow(ctx)
}

// SaveNow writes the transcript if the conversation changed since the last save.
func (s *Saver) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.engine.Version()
	if version == s.saved {
		return nil
	}
	if err := s.repo.Save(ctx, s.sessionID, s.engine.Export()); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	s.saved = version

	log.FromCtx(ctx).Debug().Str("session", s.sessionID).Uint64("version", version).Msg("conversation saved")
	return nil
}
