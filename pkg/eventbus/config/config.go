package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Config holds event bus settings.
type Config struct {
	LogLevel  string `yaml:"log_level" json:"log_level" env:"EVENTBUS_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" json:"log_format" env:"EVENTBUS_LOG_FORMAT"`

	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled" env:"EVENTBUS_METRICS_ENABLED"`
	TracingEnabled bool `yaml:"tracing_enabled" json:"tracing_enabled" env:"EVENTBUS_TRACING_ENABLED"`

	// JournalPath enables the delivery journal. Empty disables it.
	JournalPath string `yaml:"journal_path" json:"journal_path" env:"EVENTBUS_JOURNAL_PATH"`
	// JournalFaultsOnly records only failed invocations when true.
	JournalFaultsOnly bool `yaml:"journal_faults_only" json:"journal_faults_only" env:"EVENTBUS_JOURNAL_FAULTS_ONLY"`

	// ShutdownTimeout bounds how long Close waits for queued envelopes.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"-" env:"EVENTBUS_SHUTDOWN_TIMEOUT"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		LogLevel:          "info",
		LogFormat:         "text",
		JournalFaultsOnly: true,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Validate reports settings that cannot be applied.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// Level returns the slog level for LogLevel, or info if it is not recognized.
func (c Config) Level() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds a logger writing to w in the configured format and level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
