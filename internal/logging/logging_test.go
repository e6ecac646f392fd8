package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("dev"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("production"))
	assert.Equal(t, slog.LevelError, ParseLevel(""))
}

func TestNewPrefersExplicitLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	logger := New(&buf, "info")
	logger.Info("link connected", "peer", "p1")
	assert.Contains(t, buf.String(), "peer=p1")

	buf.Reset()
	New(&buf, "").Info("hidden")
	assert.Empty(t, buf.String())
}
