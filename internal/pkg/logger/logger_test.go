package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("nonsense"))
}

func TestNew_JSONRedactsEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", RedactPII: true, Output: &buf})

	l.Info("debt created", "email", "jane.doe@example.com", "note", "sent to bob.smith@example.org",
		"error", errors.New("no debt for carol@example.net"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ja***@example.com", entry["email"])
	assert.Equal(t, "sent to bo***@example.org", entry["note"])
	assert.Equal(t, "no debt for ca***@example.net", entry["error"])
	assert.Equal(t, "debt created", entry["msg"])
}

func TestNew_NoRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Output: &buf})
	l.Info("x", "email", "jane.doe@example.com")
	assert.Contains(t, buf.String(), "jane.doe@example.com")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Format: "text", Output: &buf})
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetup_ReplacesDefault(t *testing.T) {
	prev := Default()
	defer func() { defaultLogger.Store(prev); slog.SetDefault(prev) }()

	var buf bytes.Buffer
	Setup(Options{Level: "info", Format: "json", RedactPII: true, Output: &buf})
	Info("payment applied", "customer_email", "jane.doe@example.com")
	assert.Contains(t, buf.String(), "ja***@example.com")
}
