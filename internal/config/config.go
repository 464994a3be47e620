// Package config loads and validates statuspeek settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
	LogFormatText    = "text"

	MethodHead = "head"
	MethodGet  = "get"

	// MaxRateLimit caps runner.rate_limit in resolutions started per second.
	MaxRateLimit = 1000
)

// Config holds all configuration for the application.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	HTTP     HTTPConfig     `yaml:"http"`
	Runner   RunnerConfig   `yaml:"runner"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ResolverConfig bounds a single redirect walk.
type ResolverConfig struct {
	MaxHops     int           `yaml:"max_hops"`
	Budget      time.Duration `yaml:"budget"`
	StrictLoops bool          `yaml:"strict_loops"`
}

// HTTPConfig configures the transport used for every hop.
type HTTPConfig struct {
	Timeout   time.Duration     `yaml:"timeout"`
	Method    string            `yaml:"method"`
	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers"`
	Cookie    string            `yaml:"cookie"`
	Proxy     string            `yaml:"proxy"`
	Insecure  bool              `yaml:"insecure"`
	Retries   int               `yaml:"retries"`
}

// RunnerConfig controls batch fan-out.
type RunnerConfig struct {
	Threads   int `yaml:"threads"`
	RateLimit int `yaml:"rate_limit"`
}

// LogConfig configures console and file log outputs.
type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level"`
	Rotation RotationConfig `yaml:"rotation"`
}

// RotationConfig is passed to lumberjack. Sizes in megabytes, age in days.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MaxHops: 10,
			Budget:  30 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
			Method:  MethodHead,
		},
		Runner: RunnerConfig{
			Threads: 10,
		},
		Log: LogConfig{
			Level: LogLevelWarn,
			Console: ConsoleLogConfig{
				Enabled: true,
				Format:  LogFormatConsole,
			},
			File: FileLogConfig{
				Format: LogFormatJSON,
				Rotation: RotationConfig{
					MaxSize:    100,
					MaxAge:     7,
					MaxBackups: 3,
				},
			},
		},
		Metrics: MetricsConfig{
			Listen:    "127.0.0.1:9464",
			Path:      "/metrics",
			Namespace: "statuspeek",
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Resolver.MaxHops <= 0 {
		errs = append(errs, fmt.Errorf("resolver.max_hops must be > 0 (got %d)", c.Resolver.MaxHops))
	}
	if c.Resolver.Budget <= 0 {
		errs = append(errs, fmt.Errorf("resolver.budget must be > 0 (got %s)", c.Resolver.Budget))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be > 0 (got %s)", c.HTTP.Timeout))
	}
	if c.HTTP.Method != MethodHead && c.HTTP.Method != MethodGet {
		errs = append(errs, fmt.Errorf("http.method must be %q or %q (got %q)", MethodHead, MethodGet, c.HTTP.Method))
	}
	if c.HTTP.Retries < 0 {
		errs = append(errs, fmt.Errorf("http.retries must be >= 0 (got %d)", c.HTTP.Retries))
	}
	if c.Runner.Threads <= 0 {
		errs = append(errs, fmt.Errorf("runner.threads must be > 0 (got %d)", c.Runner.Threads))
	}
	if c.Runner.RateLimit < 0 || c.Runner.RateLimit > MaxRateLimit {
		errs = append(errs, fmt.Errorf("runner.rate_limit must be between 0 and %d (got %d)", MaxRateLimit, c.Runner.RateLimit))
	}
	errs = append(errs, c.Log.validate()...)
	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
		}
		if c.Metrics.Path == "" || c.Metrics.Path[0] != '/' {
			errs = append(errs, fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path))
		}
	}
	return errors.Join(errs...)
}

func (l LogConfig) validate() []error {
	var errs []error
	for name, level := range map[string]string{"log.level": l.Level, "log.console.level": l.Console.Level, "log.file.level": l.File.Level} {
		if !validLevel(level) {
			errs = append(errs, fmt.Errorf("%s: unknown level %q", name, level))
		}
	}
	if l.Console.Enabled && !validFormat(l.Console.Format) {
		errs = append(errs, fmt.Errorf("log.console.format: unknown format %q", l.Console.Format))
	}
	if l.File.Enabled {
		if l.File.Path == "" {
			errs = append(errs, errors.New("log.file.path must be specified when file logging is enabled"))
		}
		if !validFormat(l.File.Format) {
			errs = append(errs, fmt.Errorf("log.file.format: unknown format %q", l.File.Format))
		}
	}
	return errs
}

func validLevel(level string) bool {
	switch level {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

func validFormat(format string) bool {
	switch format {
	case "", LogFormatConsole, LogFormatJSON, LogFormatText:
		return true
	}
	return false
}
