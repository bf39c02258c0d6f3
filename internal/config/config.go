package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"m3uplay/internal/engine"
	"m3uplay/internal/source"
)

const (
	DefaultFetchTimeout   = 15 * time.Second
	DefaultNetworkCaching = 1500 * time.Millisecond
	DefaultVolume         = 70
	DefaultLogLevel       = "info"
)

// Environment overrides, applied after the file.
const (
	EnvConfigFile = "M3UPLAY_CONFIG"
	EnvBinary     = "M3UPLAY_MPV"
	EnvLogLevel   = "M3UPLAY_LOG_LEVEL"
	EnvLogFile    = "M3UPLAY_LOG_FILE"
)

type Config struct {
	LogLevel      string        `yaml:"log_level"`
	LogFile       string        `yaml:"log_file"`
	UserAgent     string        `yaml:"user_agent"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	InitialVolume int           `yaml:"initial_volume"`
	Engine        EngineConfig  `yaml:"engine"`
}

type EngineConfig struct {
	Binary         string        `yaml:"binary"`
	NetworkCaching time.Duration `yaml:"network_caching"`
	TitleOverlay   bool          `yaml:"title_overlay"`
	WindowID       int64         `yaml:"window_id"`
	ExtraArgs      []string      `yaml:"extra_args"`
}

func Default() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		UserAgent:     source.DefaultUserAgent,
		FetchTimeout:  DefaultFetchTimeout,
		InitialVolume: DefaultVolume,
		Engine: EngineConfig{
			Binary:         "mpv",
			NetworkCaching: DefaultNetworkCaching,
		},
	}
}

// Load reads the YAML file at path on top of the defaults; an empty path
// means defaults only. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(content, conf); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	conf.applyEnv()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBinary); v != "" {
		c.Engine.Binary = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.InitialVolume < 0 || c.InitialVolume > 100 {
		return fmt.Errorf("initial_volume must be within 0-100, got %d", c.InitialVolume)
	}
	if c.Engine.NetworkCaching < 0 {
		return fmt.Errorf("engine.network_caching must not be negative")
	}
	if c.UserAgent == "" {
		c.UserAgent = source.DefaultUserAgent
	}
	return nil
}

func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Binary:         c.Engine.Binary,
		TitleOverlay:   c.Engine.TitleOverlay,
		NetworkCaching: c.Engine.NetworkCaching,
		WindowID:       c.Engine.WindowID,
		ExtraArgs:      c.Engine.ExtraArgs,
	}
}
