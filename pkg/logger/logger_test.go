package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf, Service: "beatauth"})

	log.Info().Msg("dropped")
	log.Warn().Str("address", "0xabc").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "beatauth", entry["service"])
	assert.Equal(t, "0xabc", entry["address"])
}
