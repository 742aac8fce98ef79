package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	APIURL   string `env:"TRIPCTL_API_URL" env-default:"http://localhost:8080" yaml:"api_url"`
	APIToken string `env:"TRIPCTL_API_TOKEN" yaml:"api_token"`
	StateDir string `env:"TRIPCTL_STATE_DIR" yaml:"state_dir"`
	LogLevel string `env:"TRIPCTL_LOG_LEVEL" env-default:"warn" yaml:"log_level"`

	Media MediaConfig `yaml:"media"`
}

type MediaConfig struct {
	FFmpegPath string `env:"TRIPCTL_FFMPEG" env-default:"ffmpeg" yaml:"ffmpeg_path"`
	// AudioInput and VideoInput are ffmpeg device names; empty picks the
	// platform default.
	AudioInput string `env:"TRIPCTL_AUDIO_INPUT" yaml:"audio_input"`
	VideoInput string `env:"TRIPCTL_VIDEO_INPUT" yaml:"video_input"`
	SampleRate int    `env:"TRIPCTL_SAMPLE_RATE" env-default:"16000" yaml:"sample_rate"`
}

// Load reads path (or TRIPCTL_CONFIG) when set, otherwise the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TRIPCTL_CONFIG")
	}

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.StateDir = filepath.Join(dir, "tripctl")
	}
	return &cfg, nil
}
