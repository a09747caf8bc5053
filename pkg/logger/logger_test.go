package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.True(t, log.Info().Enabled())
	assert.False(t, log.Debug().Enabled())
}

func TestNewDebugOverridesLevel(t *testing.T) {
	log, err := New(&Config{Level: "error", Debug: true})
	require.NoError(t, err)

	assert.True(t, log.Debug().Enabled())
}

func TestNewLevelParsing(t *testing.T) {
	log, err := New(&Config{Level: "warn"})
	require.NoError(t, err)

	assert.True(t, log.Warn().Enabled())
	assert.False(t, log.Info().Enabled())

	_, err = New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewComponentLogger(t *testing.T) {
	log, err := NewComponentLogger("statewatch", nil)
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.True(t, log.Info().Enabled())
}

func TestNewTestLoggerDiscardsEverything(t *testing.T) {
	log := NewTestLogger()

	// Must not panic or write anywhere.
	log.Info().Str("k", "v").Msg("discarded")
	log.Error().Msg("discarded")

	assert.False(t, log.Debug().Enabled())
}
