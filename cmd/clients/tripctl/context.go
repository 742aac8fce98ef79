package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/api"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/media"
	config "github.com/Danwoltrs/wolthers-travel-app-sub001/config/client"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/jwt"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
)

type rootFlags struct {
	config string
	apiURL string
	token  string
	json   bool
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.apiURL); v != "" {
			cfg.APIURL = v
		}
		if v := strings.TrimSpace(c.flags.token); v != "" {
			cfg.APIToken = v
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if c.config != nil {
		level = c.config.LogLevel
	}
	return logger.New(logger.Config{
		Level:  logger.ParseLevel(level),
		Output: cmd.ErrOrStderr(),
	})
}

func (c *commandContext) client(cmd *cobra.Command) (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.New(cfg.APIURL, cfg.APIToken, api.WithLogger(c.logger(cmd))), nil
}

// identity is the caller as named by their token.
func (c *commandContext) identity() (*jwt.Claims, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.APIToken == "" {
		return nil, errors.New("no API token; set TRIPCTL_API_TOKEN or pass --token")
	}
	claims, err := jwt.Peek(cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return claims, nil
}

func (c *commandContext) capture() media.FFmpeg {
	m := c.config.Media
	return media.FFmpeg{
		Path:       m.FFmpegPath,
		AudioInput: m.AudioInput,
		VideoInput: m.VideoInput,
		SampleRate: m.SampleRate,
	}
}

// interactive reports whether r is a terminal, so prompts are worth printing.
func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// syncWriter serializes writes from the prompt loop and background saves.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
