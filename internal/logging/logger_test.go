package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("component", "test").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Debug().Msg("hidden")
	Info().Msg("hidden too")
	assert.Empty(t, buf.String())

	Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithRequestID(context.Background(), "req-42")
	Ctx(ctx).Info().Msg("scoped")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
