package internal

import (
	"io"
	"log/slog"
)

// Mode selects what Run does.
type Mode string

// Application modes.
const (
	ModeUpdate Mode = "update"
	ModeWatch  Mode = "watch"
	ModeServe  Mode = "serve"
	ModeMCP    Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mode    Mode
	dryRun  bool
	report  io.Writer
	logger  *slog.Logger
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the application mode. The default is ModeUpdate.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithDryRun reports changes without writing documents.
func WithDryRun(dry bool) Option {
	return func(a *application) {
		a.dryRun = dry
	}
}

// WithReport writes the JSON run summary of an update to w.
func WithReport(w io.Writer) Option {
	return func(a *application) {
		a.report = w
	}
}

// WithLogger replaces the JSON stderr logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithVersion sets the version advertised by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
