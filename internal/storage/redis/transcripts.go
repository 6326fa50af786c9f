package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

const keyPrefix = "mythic:transcript:"

// NewClient connects to the configured redis server.
func NewClient(ctx context.Context, cfg *config.StorageConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// TranscriptRepo keeps each session transcript as a JSON string without
// expiration.
type TranscriptRepo struct {
	rdb *redis.Client
}

func NewTranscriptRepo(rdb *redis.Client) *TranscriptRepo {
	return &TranscriptRepo{rdb: rdb}
}

func transcriptKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *TranscriptRepo) Save(ctx context.Context, sessionID string, t core.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := r.rdb.Set(ctx, transcriptKey(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	log.FromCtx(ctx).Debug().
		Str("session_id", sessionID).
		Int("messages", len(t.RawMessages)).
		Msg("transcript saved")
	return nil
}

func (r *TranscriptRepo) Load(ctx context.Context, sessionID string) (core.Transcript, bool, error) {
	data, err := r.rdb.Get(ctx, transcriptKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Transcript{}, false, nil
	}
	if err != nil {
		return core.Transcript{}, false, fmt.Errorf("failed to load transcript: %w", err)
	}

	var t core.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return core.Transcript{}, false, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return t, true, nil
}

func (r *TranscriptRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, transcriptKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
