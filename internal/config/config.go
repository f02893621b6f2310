// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/autocut/internal/denoise"
	"github.com/maauso/autocut/internal/editor"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_JOBS is below 1.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_JOBS must be at least 1")
	// ErrInvalidLogFormat is returned for a LOG_FORMAT other than text or json.
	ErrInvalidLogFormat = errors.New("config: LOG_FORMAT must be text or json")
	// ErrInvalidDefaults is returned when the editing defaults are out of range.
	ErrInvalidDefaults = errors.New("config: invalid editing defaults")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8008" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR" json:"temp_dir"`

	// Job settings
	KeepLogSec        int `env:"KEEP_LOG_SEC, default=1800" json:"keep_log_sec"`
	MaxSampleLength   int `env:"MAX_SAMPLE_LENGTH, default=30000000" json:"max_sample_length"`
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`

	// Media tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Editing defaults
	MinIntervalSec   float64 `env:"MIN_INTERVAL_SEC, default=0.125" json:"min_interval_sec"`
	CutoffRatio      float64 `env:"CUTOFF_RATIO, default=0.85" json:"cutoff_ratio"`
	CrossfadeSec     float64 `env:"CROSSFADE_SEC, default=0.1" json:"crossfade_sec"`
	MaxIntervalRatio float64 `env:"MAX_INTERVAL_RATIO, default=0.15" json:"max_interval_ratio"`
	NIter            int     `env:"N_ITER, default=1" json:"n_iter"`
	BasisNoiseNum    int     `env:"BASIS_NOISE_NUM, default=20" json:"basis_noise_num"`
	BasisNum         int     `env:"BASIS_NUM, default=20" json:"basis_num"`
	NMFIter          int     `env:"NMF_ITER, default=50" json:"nmf_iter"`
	NMFDivergence    string  `env:"NMF_DIVERGENCE, default=kl" json:"nmf_divergence"`
	NormalizeScale   float64 `env:"NORMALIZE_SCALE, default=1.0" json:"normalize_scale"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// KeepLog returns how long finished jobs are retained.
func (c *Config) KeepLog() time.Duration {
	return time.Duration(c.KeepLogSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
// An empty TEMP_DIR resolves to autocut under the system temp directory.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "autocut")
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxConcurrentJobs < 1 {
		return ErrInvalidConcurrency
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return ErrInvalidLogFormat
	}
	if err := c.ClipOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefaults, err)
	}
	if err := c.DenoiseOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefaults, err)
	}
	return nil
}

// ClipOptions returns the configured silence removal defaults.
func (c *Config) ClipOptions() editor.ClipOptions {
	return editor.ClipOptions{
		MinIntervalSec: c.MinIntervalSec,
		CutoffRatio:    c.CutoffRatio,
		CrossfadeSec:   c.CrossfadeSec,
	}
}

// DenoiseOptions returns the configured noise reduction defaults. The
// reference search shares MIN_INTERVAL_SEC and CUTOFF_RATIO with clipping.
func (c *Config) DenoiseOptions() editor.DenoiseOptions {
	params := denoise.DefaultParams()
	params.BasisNoiseNum = c.BasisNoiseNum
	params.BasisNum = c.BasisNum
	params.NMFIter = c.NMFIter
	params.Divergence = denoise.Divergence(strings.ToLower(c.NMFDivergence))
	params.NormalizeScale = c.NormalizeScale

	return editor.DenoiseOptions{
		MinIntervalSec:   c.MinIntervalSec,
		CutoffRatio:      c.CutoffRatio,
		MaxIntervalRatio: c.MaxIntervalRatio,
		NIter:            c.NIter,
		Params:           params,
	}
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

// NewStderrLogger is NewLogger writing to stderr, for the CLI.
func (c *Config) NewStderrLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w *os.File) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, KeepLogSec: %d, MaxSampleLength: %d, MaxConcurrentJobs: %d, MinIntervalSec: %g, CutoffRatio: %g, CrossfadeSec: %g, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.KeepLogSec,
		c.MaxSampleLength,
		c.MaxConcurrentJobs,
		c.MinIntervalSec,
		c.CutoffRatio,
		c.CrossfadeSec,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
