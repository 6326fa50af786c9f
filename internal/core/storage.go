package core

import (
	"context"
)

// TranscriptRepository persists one transcript per session.
type TranscriptRepository interface {
	Save(ctx context.Context, sessionID string, t Transcript) error
	Load(ctx context.Context, sessionID string) (Transcript, bool, error)
	Delete(ctx context.Context, sessionID string) error
}
