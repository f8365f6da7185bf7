package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/socialtinder/internal/config"
)

func initBuffered(t *testing.T, c Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	c.Output = &buf
	Init(&c)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })
	return &buf
}

func TestLogger_TextFormat(t *testing.T) {
	buf := initBuffered(t, Config{Level: "debug", Format: FormatText, Component: "api"})

	Info("conversation created", "conversation_id", 7)

	out := buf.String()
	assert.Contains(t, out, "conversation created")
	assert.Contains(t, out, "component=api")
	assert.Contains(t, out, "conversation_id=7")
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := initBuffered(t, Config{Level: "info", Format: FormatJSON, Component: "json_test"})

	Info("ticket purchased", "ticket_id", "t-1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"ticket purchased"`)
	assert.Contains(t, out, `"component":"json_test"`)
	assert.Contains(t, out, `"ticket_id":"t-1"`)
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := initBuffered(t, Config{Level: "error", Format: FormatText})

	Info("should not appear")
	Error("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_WithAddsFields(t *testing.T) {
	buf := initBuffered(t, Config{Level: "debug", Format: FormatText})

	With("request_id", "123").Info("processing request")

	assert.Contains(t, buf.String(), "request_id=123")
}

func TestLogger_InitFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	cfg.Log.Component = "cfg_test"

	InitFromConfig(cfg)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	assert.True(t, L().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, L().Enabled(context.Background(), slog.LevelInfo))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
