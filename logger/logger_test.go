package logger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel, "json", "")

	l.With(String("component", "registry")).Info("trained",
		String("key", "Paracetamol_North"),
		Int("points", 24),
		Float("sigma", 0.5),
		Bool("hit", false),
		Duration("took", 2*time.Millisecond),
		Error(errors.New("boom")),
	)

	var out map[string]interface{}
	require.Nil(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "info", out["level"])
	assert.Equal(t, "trained", out["message"])
	assert.Equal(t, "registry", out["component"])
	assert.Equal(t, "Paracetamol_North", out["key"])
	assert.Equal(t, 24.0, out["points"])
	assert.Equal(t, 0.5, out["sigma"])
	assert.Equal(t, false, out["hit"])
	assert.Equal(t, "boom", out["error"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel, "json", "")
	l.Info("dropped")
	l.Debug("dropped")
	assert.Equal(t, 0, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNilAndNop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.With(String("a", "b")).Error("nothing")
		Nop().Warn("nothing")
	})
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stderr"})
	assert.NotNil(t, err)

	l, err := New(nil)
	require.Nil(t, err)
	assert.NotNil(t, l)
}
