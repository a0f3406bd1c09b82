package internal

import (
	"io"

	"github.com/starford/automaton/internal/action"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	opener    action.Opener
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. Commands that own stdout
// (mcp, list, export) log to stderr instead.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithOpener replaces the configured URL opener.
func WithOpener(o action.Opener) Option {
	return func(a *application) {
		a.opener = o
	}
}
