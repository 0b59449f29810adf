package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	l, err := New(Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "relay.log")})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestCron_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	c := Cron{Log: zerolog.New(&buf)}

	c.Error(errors.New("boom"), "job panicked", "job", "signals")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "signals", entry["job"])
	assert.Equal(t, "job panicked", entry["message"])
}
