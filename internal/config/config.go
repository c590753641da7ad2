// Package config loads kgraph configuration.
//
// Values are layered, later layers winning:
//   - built-in defaults
//   - ~/.config/kgraph/config.yaml (or --config)
//   - KGRAPH_* environment variables
//   - command-line flags (applied by cmd)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/kgraph/internal/api"
	"github.com/abhisek/kgraph/internal/mastery"
)

// DefaultBaseURL is the backend used when none is configured.
const DefaultBaseURL = "http://localhost:3000"

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL string            `yaml:"base_url" validate:"required,url"`
	Token   string            `yaml:"token,omitempty"`
	Timeout time.Duration     `yaml:"timeout" validate:"gt=0"`
	Retry   api.RetryConfig   `yaml:"retry"`
	Breaker api.BreakerConfig `yaml:"breaker"`
}

// StoreConfig configures the local cache.
type StoreConfig struct {
	// Path is the SQLite file; empty means the XDG data default.
	Path          string `yaml:"path,omitempty"`
	KeepSnapshots int    `yaml:"keep_snapshots" validate:"gte=1"`
}

// LogConfig configures the file logger.
type LogConfig struct {
	// Path is the log file; empty means the XDG state default.
	Path  string `yaml:"path,omitempty"`
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Config is the top-level configuration.
type Config struct {
	// ClassID preselects a class in the TUI.
	ClassID string         `yaml:"class_id,omitempty"`
	API     APIConfig      `yaml:"api"`
	Mastery mastery.Config `yaml:"mastery"`
	Store   StoreConfig    `yaml:"store"`
	Log     LogConfig      `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 15 * time.Second,
			Retry:   api.DefaultRetryConfig(),
			Breaker: api.DefaultBreakerConfig(),
		},
		Mastery: mastery.DefaultConfig(),
		Store: StoreConfig{
			KeepSnapshots: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the XDG config directory for kgraph.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for kgraph.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "kgraph")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, "kgraph")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultLogPath returns the log file used when none is configured.
func DefaultLogPath() string {
	dir := StateDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "kgraph.log")
	}
	return filepath.Join(dir, "kgraph.log")
}

// Load reads the config file (path, or the XDG default when empty), then
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if path != "" {
		// An explicitly named file must exist.
		if _, err := os.Stat(path); err != nil {
			return DefaultConfig(), fmt.Errorf("config file: %w", err)
		}
	} else {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFrom(path); err != nil {
			return cfg, err
		}
	}

	cfg, err := ApplyEnv(cfg, os.Getenv)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Log.Path = expandHome(cfg.Log.Path)
	return cfg, nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// The file may hold an API token.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with KGRAPH_* variables read through getenv.
func ApplyEnv(cfg Config, getenv func(string) string) (Config, error) {
	if v := getenv("KGRAPH_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := getenv("KGRAPH_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := getenv("KGRAPH_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("KGRAPH_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if v := getenv("KGRAPH_CLASS"); v != "" {
		cfg.ClassID = v
	}
	if v := getenv("KGRAPH_TRACKING_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("KGRAPH_TRACKING_THRESHOLD: %w", err)
		}
		cfg.Mastery.TrackingThreshold = n
	}
	if v := getenv("KGRAPH_HALF_LIFE_DAYS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("KGRAPH_HALF_LIFE_DAYS: %w", err)
		}
		cfg.Mastery.HalfLifeDays = f
	}
	if v := getenv("KGRAPH_MASTERY_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("KGRAPH_MASTERY_LIMIT: %w", err)
		}
		cfg.Mastery.MasteryLimit = f
	}
	if v := getenv("KGRAPH_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := getenv("KGRAPH_LOG_FILE"); v != "" {
		cfg.Log.Path = v
	}
	if v := getenv("KGRAPH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
