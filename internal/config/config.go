package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	User      UserConfig      `yaml:"user"`
	State     StateConfig     `yaml:"state"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
	Stub      StubConfig      `yaml:"stub"`
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type UserConfig struct {
	ID int `yaml:"id"`
}

type StateConfig struct {
	Dir string `yaml:"dir"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StubConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Timeout returns the per-request backend timeout, 30s when unset.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Addr returns the stub listen address.
func (s StubConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names are info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix LIFTCOACH_:
//
//	LIFTCOACH_BACKEND_URL, LIFTCOACH_BACKEND_TIMEOUT,
//	LIFTCOACH_USER_ID, LIFTCOACH_STATE_DIR,
//	LIFTCOACH_TAILSCALE_ENABLED, LIFTCOACH_LOG_LEVEL, LIFTCOACH_STUB_PORT
//
// An empty path skips the file and builds the config from env alone.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadStub reads the same sources as Load but only checks what the stub
// backend needs. backend.url and user.id may be empty.
func LoadStub(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateStub(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFTCOACH_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("LIFTCOACH_BACKEND_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("LIFTCOACH_USER_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.User.ID = id
		}
	}
	if v := os.Getenv("LIFTCOACH_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}
	if v := os.Getenv("LIFTCOACH_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("LIFTCOACH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIFTCOACH_STUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Stub.Port = port
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.State.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.State.Dir = filepath.Join(home, ".liftcoach")
		}
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "liftcoach"
	}
	if cfg.Tailscale.StateDir == "" && cfg.State.Dir != "" {
		cfg.Tailscale.StateDir = filepath.Join(cfg.State.Dir, "tsnet")
	}
	if cfg.Stub.Port == 0 {
		cfg.Stub.Port = 8000
	}
}

func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.User.ID <= 0 {
		return fmt.Errorf("user.id must be positive")
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	return c.validateStub()
}

func (c *Config) validateStub() error {
	if c.Stub.Port <= 0 || c.Stub.Port > 65535 {
		return fmt.Errorf("stub.port %d out of range", c.Stub.Port)
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		return fmt.Errorf("tailscale.state_dir is required when tailscale is enabled")
	}
	return nil
}
