package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "key")
	assert.Contains(t, out, "value")
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithDebug(false)).Debug("hidden")
	assert.Empty(t, buf.String())

	New(WithWriter(&buf), WithDebug(true)).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true), WithPretty(true)).Info("structured", "count", 42)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "structured", parsed["msg"])
	assert.EqualValues(t, 42, parsed["count"])
}

func TestPretty(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("pretty output")
	assert.Contains(t, buf.String(), "pretty output")
}

func TestWriters(t *testing.T) {
	var a, b bytes.Buffer
	New(WithWriters(&a, &b)).Info("multi")
	assert.Contains(t, a.String(), "multi")
	assert.Contains(t, b.String(), "multi")
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info("msg")
		l.With("k", "v").WithGroup("g").Error("msg")
	})
	assert.False(t, l.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestMulti(t *testing.T) {
	var text, js bytes.Buffer
	m := Multi(New(WithWriter(&text)), New(WithWriter(&js), WithJSON(true)))

	m.With("component", "fusion").Info("broadcast")

	assert.Contains(t, text.String(), "broadcast")
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(js.String())), &parsed))
	assert.Equal(t, "fusion", parsed["component"])
}
