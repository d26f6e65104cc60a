// Package logger provides structured logging built on Go's standard slog
// package: a factory with environment-specific configurations and attribute
// helpers for common logging patterns.
//
//	log := logger.New(logger.WithDevelopment("clinic-client"))
//	log.Info("session established", logger.Component("session"))
package logger

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	writer  io.Writer
	level   slog.Level
	json    bool
	appName string
}

// Option configures the logger factory.
type Option func(*config)

// WithDevelopment configures human-readable text output at debug level,
// tagged with the application name.
func WithDevelopment(appName string) Option {
	return func(c *config) {
		c.appName = appName
		c.level = slog.LevelDebug
		c.json = false
	}
}

// WithProduction configures JSON output at info level, tagged with the
// application name.
func WithProduction(appName string) Option {
	return func(c *config) {
		c.appName = appName
		c.level = slog.LevelInfo
		c.json = true
	}
}

// WithLevel overrides the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithJSONFormatter forces JSON output regardless of environment preset.
func WithJSONFormatter() Option {
	return func(c *config) {
		c.json = true
	}
}

// WithWriter sets the output destination (default: os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.writer = w
		}
	}
}

// New creates a slog.Logger from the given options.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		writer: os.Stderr,
		level:  slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ho := &slog.HandlerOptions{Level: cfg.level}
	var handler slog.Handler
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.writer, ho)
	} else {
		handler = slog.NewTextHandler(cfg.writer, ho)
	}

	log := slog.New(handler)
	if cfg.appName != "" {
		log = log.With(slog.String("app", cfg.appName))
	}
	return log
}
