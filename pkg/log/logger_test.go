package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestJSONLoggerWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx, flush := NewContextWithOptions(context.Background(), Options{Debug: true, JSON: true, Out: buf})

	FromCtx(WithComponent(ctx, "orchestrator")).Info().Str("turn_id", "t1").Msg("turn started")
	flush()

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "orchestrator", lines[0]["component"])
	assert.Equal(t, "t1", lines[0]["turn_id"])
	assert.Equal(t, "info", lines[0]["level"])
}

func TestPrintfLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx, flush := NewContextWithOptions(context.Background(), Options{Debug: true, JSON: true, Out: buf})

	l := NewPrintfLogger(ctx, "migrations")
	l.Printf("OK   %s (%d ms)\n", "00001_transcripts.sql", 3)
	l.Fatalf("failed: %v", "boom")
	flush()

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "OK   00001_transcripts.sql (3 ms)", lines[0]["message"])
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "migrations", lines[1]["component"])
}
