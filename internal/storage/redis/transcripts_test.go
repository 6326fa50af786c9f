package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptKey(t *testing.T) {
	assert.Equal(t, "mythic:transcript:abc", transcriptKey("abc"))
}

// Requires a running server, e.g. REDIS_TEST_ADDR=localhost:6379.
func TestTranscriptRepo_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := NewClient(ctx, &config.StorageConfig{RedisAddr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	repo := NewTranscriptRepo(rdb)
	session := "test-" + uuid.NewString()
	defer repo.Delete(ctx, session)

	_, found, err := repo.Load(ctx, session)
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	want := core.Transcript{
		Summaries:   []core.Summary{{Text: "s", CoversMessageCount: 2, CreatedAt: at}},
		RawMessages: []core.Message{{Role: core.RoleUser, Text: "hi", CreatedAt: at, TokenCount: 1}},
	}
	require.NoError(t, repo.Save(ctx, session, want))

	got, found, err := repo.Load(ctx, session)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, repo.Delete(ctx, session))
	_, found, err = repo.Load(ctx, session)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, &config.StorageConfig{RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
}
