package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

// TranscriptRepo stores one JSON transcript per session.
type TranscriptRepo struct {
	db *sql.DB
}

func NewTranscriptRepo(db *sql.DB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

func (r *TranscriptRepo) Save(ctx context.Context, sessionID string, t core.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	query := `
		INSERT INTO transcripts (session_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, sessionID, string(data)); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	log.FromCtx(ctx).Debug().
		Str("session_id", sessionID).
		Int("messages", len(t.RawMessages)).
		Msg("transcript saved")
	return nil
}

func (r *TranscriptRepo) Load(ctx context.Context, sessionID string) (core.Transcript, bool, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM transcripts WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transcript{}, false, nil
	}
	if err != nil {
		return core.Transcript{}, false, fmt.Errorf("failed to load transcript: %w", err)
	}

	var t core.Transcript
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return core.Transcript{}, false, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return t, true, nil
}

func (r *TranscriptRepo) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
