package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out), "logger output should be one JSON object")
	return out
}

func TestNewWithWriter_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	log.Info().Str("transfer_id", "t-1").Msg("transfer completed")

	out := decodeLine(t, &buf)
	assert.Equal(t, "transfer completed", out["message"])
	assert.Equal(t, "t-1", out["transfer_id"])
	assert.Equal(t, "info", out["level"])
	assert.Equal(t, Service, out["service"])
	assert.Contains(t, out, "time")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)

	log.Warn().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Error().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "verifier")
	log.Info().Msg("reconcile finished")

	out := decodeLine(t, &buf)
	assert.Equal(t, "verifier", out["component"])
	assert.Equal(t, Service, out["service"])
}

func TestNew_Pretty(t *testing.T) {
	log := New("debug", true)
	assert.NotPanics(t, func() { log.Debug().Msg("console output") })
}
