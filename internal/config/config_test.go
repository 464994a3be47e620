package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statuspeek.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Resolver.MaxHops)
	assert.Equal(t, 30*time.Second, cfg.Resolver.Budget)
	assert.False(t, cfg.Resolver.StrictLoops)
	assert.Equal(t, MethodHead, cfg.HTTP.Method)
	assert.Equal(t, 10, cfg.Runner.Threads)
	assert.True(t, cfg.Log.Console.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
resolver:
  max_hops: 5
  budget: 12s
  strict_loops: true
http:
  timeout: 3s
  method: get
  headers:
    X-Test: "1"
  retries: 2
runner:
  threads: 4
  rate_limit: 20
log:
  level: debug
metrics:
  enabled: true
  listen: ":9100"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Resolver.MaxHops)
	assert.Equal(t, 12*time.Second, cfg.Resolver.Budget)
	assert.True(t, cfg.Resolver.StrictLoops)
	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, MethodGet, cfg.HTTP.Method)
	assert.Equal(t, map[string]string{"X-Test": "1"}, cfg.HTTP.Headers)
	assert.Equal(t, 2, cfg.HTTP.Retries)
	assert.Equal(t, 4, cfg.Runner.Threads)
	assert.Equal(t, 20, cfg.Runner.RateLimit)
	assert.Equal(t, LogLevelDebug, cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	// untouched sections keep defaults
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.Log.Console.Enabled)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "resolver:\n  max_hop: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration field")
	assert.Contains(t, err.Error(), "valid sections: resolver, http, runner, log, metrics")
}

func TestUnmarshalStrict_UnknownSection(t *testing.T) {
	cfg := Default()
	err := UnmarshalStrict([]byte("resolvers:\n  max_hops: 3\n"), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolvers")
	assert.Contains(t, err.Error(), "valid sections")
	assert.Equal(t, 10, cfg.Resolver.MaxHops)
}

func TestUnmarshalStrict_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, UnmarshalStrict(nil, cfg))
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"maxHops", func(c *Config) { c.Resolver.MaxHops = 0 }, "resolver.max_hops"},
		{"budget", func(c *Config) { c.Resolver.Budget = 0 }, "resolver.budget"},
		{"timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }, "http.timeout"},
		{"method", func(c *Config) { c.HTTP.Method = "post" }, "http.method"},
		{"retries", func(c *Config) { c.HTTP.Retries = -1 }, "http.retries"},
		{"threads", func(c *Config) { c.Runner.Threads = 0 }, "runner.threads"},
		{"rateLimit", func(c *Config) { c.Runner.RateLimit = -5 }, "runner.rate_limit"},
		{"rateLimitTooHigh", func(c *Config) { c.Runner.RateLimit = 2_000_000_000 }, "runner.rate_limit"},
		{"logLevel", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"logFilePath", func(c *Config) { c.Log.File.Enabled = true }, "log.file.path"},
		{"metricsListen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
		{"metricsPath", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
