package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auravfx/server/logging"
)

func TestJSONSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Write(logging.Event{
		Type:     "rigs.budget_reached",
		Tick:     9,
		Time:     at,
		Severity: logging.SeverityInfo,
		Actor:    logging.PlayerRef("p1"),
		Payload:  map[string]int{"budget": 4},
	}))
	require.NoError(t, sink.Close(context.Background()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "rigs.budget_reached", decoded["type"])
	assert.Equal(t, "info", decoded["severity"])
	assert.Equal(t, at.Format(time.RFC3339Nano), decoded["time"])
}

func TestLogrusSinkFormatsFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrus(&buf, logging.LogrusConfig{Format: "json", Level: "debug"})

	require.NoError(t, sink.Write(logging.Event{
		Type:     "runtime.tick_failed",
		Tick:     3,
		Time:     time.Now(),
		Severity: logging.SeverityError,
		Category: logging.CategoryRuntime,
		Actor:    logging.WorldRef("default"),
		Extra:    map[string]any{"loop": "models"},
	}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "runtime.tick_failed", decoded["msg"])
	assert.Equal(t, "error", decoded["level"])
	assert.Equal(t, "world:default", decoded["actor"])
	assert.Equal(t, "models", decoded["loop"])
}

func TestLogrusSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrus(&buf, logging.LogrusConfig{Level: "warn"})
	require.NoError(t, sink.Write(logging.Event{Type: "quiet", Severity: logging.SeverityInfo}))
	assert.Empty(t, buf.String())

	require.NoError(t, sink.Write(logging.Event{Type: "loud", Severity: logging.SeverityWarn}))
	assert.True(t, strings.Contains(buf.String(), "loud"))
}

func TestMemoryOfType(t *testing.T) {
	sink := NewMemory()
	_ = sink.Write(logging.Event{Type: "a"})
	_ = sink.Write(logging.Event{Type: "b"})
	_ = sink.Write(logging.Event{Type: "a"})
	assert.Len(t, sink.OfType("a"), 2)
	sink.Reset()
	assert.Empty(t, sink.Events())
}
