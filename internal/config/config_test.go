package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.DiscordToken)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.Equal(t, "temp", cfg.AudioCacheDir)
	assert.Equal(t, ":9298", cfg.AudioServerAddr)
	assert.Equal(t, "http://localhost:9298", cfg.AudioBaseURL)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("IDLE_TIMEOUT", "30s")
	t.Setenv("AUDIO_BASE_URL", "http://media.example.com")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, "http://media.example.com", cfg.AudioBaseURL)
}

func TestNew_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := New()
	assert.Error(t, err)
}
