package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StampsClientID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: zerolog.DebugLevel, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: zerolog.InfoLevel}) })

	log := Session("tenant-1")
	log.Info().Str("status", "ready").Msg("session ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tenant-1", line["clientId"])
	assert.Equal(t, "ready", line["status"])
	assert.Equal(t, "session ready", line["message"])
}

func TestSession_EveryLevelChains(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: zerolog.DebugLevel, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: zerolog.InfoLevel}) })

	log := Session("tenant-1")
	log.Debug().Msg("a")
	log.Info().Msg("b")
	log.Warn().Msg("c")
	log.Error().Msg("d")

	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte(`"clientId":"tenant-1"`)))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"FATAL", zerolog.FatalLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input %q", tt.input)
	}
}
