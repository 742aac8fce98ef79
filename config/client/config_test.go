package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRIPCTL_CONFIG", "")
	t.Setenv("TRIPCTL_API_URL", "https://trips.example.com")
	t.Setenv("TRIPCTL_STATE_DIR", "/tmp/tripctl-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://trips.example.com", cfg.APIURL)
	assert.Equal(t, "/tmp/tripctl-test", cfg.StateDir)
	assert.Equal(t, "ffmpeg", cfg.Media.FFmpegPath)
	assert.Equal(t, 16000, cfg.Media.SampleRate)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"api_url: http://10.0.0.5:8080\napi_token: abc\nmedia:\n  audio_input: \"hw:1\"\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", cfg.APIURL)
	assert.Equal(t, "abc", cfg.APIToken)
	assert.Equal(t, "hw:1", cfg.Media.AudioInput)
	assert.NotEmpty(t, cfg.StateDir)
}
