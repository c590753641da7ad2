package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
class_id: "17"
api:
  base_url: https://learn.example.com/api
  timeout: 5s
  retry:
    max_attempts: 5
mastery:
  tracking_threshold: 12
  mastery_limit: 0.9
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "17", cfg.ClassID)
	assert.Equal(t, "https://learn.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.API.Retry.MaxAttempts)
	assert.Equal(t, DefaultConfig().API.Retry.Multiplier, cfg.API.Retry.Multiplier)
	assert.Equal(t, 12, cfg.Mastery.TrackingThreshold)
	assert.Equal(t, 5.0, cfg.Mastery.HalfLifeDays)
	assert.Equal(t, 0.9, cfg.Mastery.MasteryLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, Validate(cfg))
}

func TestLoadFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o644))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.ClassID = "99"
	cfg.Mastery.HalfLifeDays = 7

	require.NoError(t, SaveTo(cfg, path))
	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestApplyEnv(t *testing.T) {
	cfg, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{
		"KGRAPH_API_URL":            "https://api.example.com",
		"KGRAPH_API_TOKEN":          "tok",
		"KGRAPH_API_TIMEOUT":        "3s",
		"KGRAPH_CLASS":              "8",
		"KGRAPH_TRACKING_THRESHOLD": "4",
		"KGRAPH_HALF_LIFE_DAYS":     "2.5",
		"KGRAPH_MASTERY_LIMIT":      "0.75",
		"KGRAPH_DB":                 "/tmp/k.db",
		"KGRAPH_LOG_FILE":           "/tmp/k.log",
		"KGRAPH_LOG_LEVEL":          "WARN",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "tok", cfg.API.Token)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "8", cfg.ClassID)
	assert.Equal(t, 4, cfg.Mastery.TrackingThreshold)
	assert.Equal(t, 2.5, cfg.Mastery.HalfLifeDays)
	assert.Equal(t, 0.75, cfg.Mastery.MasteryLimit)
	assert.Equal(t, "/tmp/k.db", cfg.Store.Path)
	assert.Equal(t, "/tmp/k.log", cfg.Log.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnv_BadValues(t *testing.T) {
	for _, key := range []string{
		"KGRAPH_API_TIMEOUT",
		"KGRAPH_TRACKING_THRESHOLD",
		"KGRAPH_HALF_LIFE_DAYS",
		"KGRAPH_MASTERY_LIMIT",
	} {
		t.Run(key, func(t *testing.T) {
			_, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{key: "lots"}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.baseurl is required"},
		{"bad base url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.baseurl must be a valid URL"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout must be greater than 0"},
		{"negative threshold", func(c *Config) { c.Mastery.TrackingThreshold = -1 }, "mastery.trackingthreshold must be at least 0"},
		{"limit above one", func(c *Config) { c.Mastery.MasteryLimit = 1.5 }, "mastery.masterylimit must be at most 1"},
		{"zero limit", func(c *Config) { c.Mastery.MasteryLimit = 0 }, "mastery.masterylimit must be greater than 0"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level must be one of"},
		{"keep zero", func(c *Config) { c.Store.KeepSnapshots = 0 }, "store.keepsnapshots must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, Validate(cfg), tt.wantErr)
		})
	}
}
