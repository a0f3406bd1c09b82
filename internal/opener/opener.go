// Package opener hands URLs to the operating system.
package opener

import (
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/starford/automaton/internal/action"
)

// Modes accepted by New.
const (
	ModeExec     = "exec"
	ModeLog      = "log"
	ModeDisabled = "disabled"
)

// New returns the opener for mode. command overrides the platform default
// for ModeExec.
func New(mode, command string, logger *slog.Logger) (action.Opener, error) {
	switch mode {
	case ModeExec, "":
		return NewExec(command, logger), nil
	case ModeLog:
		return Log{logger: logger}, nil
	case ModeDisabled:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("opener: unknown mode %q", mode)
	}
}

// DefaultCommand returns the URL handler command for the running OS.
func DefaultCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// Exec opens URLs by running an external command with the URL as its only
// argument.
type Exec struct {
	command  string
	logger   *slog.Logger
	lookPath func(string) (string, error)
	start    func(name string, arg string) error
}

// NewExec creates an Exec opener. An empty command selects DefaultCommand.
func NewExec(command string, logger *slog.Logger) *Exec {
	if command == "" {
		command = DefaultCommand()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{command: command, logger: logger, lookPath: exec.LookPath, start: startDetached}
}

// CanOpen reports whether the handler command is available.
func (e *Exec) CanOpen(*url.URL) bool {
	_, err := e.lookPath(e.command)
	return err == nil
}

// Open starts the handler and returns without waiting for it.
func (e *Exec) Open(u *url.URL) {
	if err := e.start(e.command, u.String()); err != nil {
		e.logger.Warn("open url failed",
			slog.String("url", u.String()),
			slog.String("command", e.command),
			slog.String("error", err.Error()))
		return
	}
	e.logger.Info("open url requested", slog.String("url", u.String()))
}

func startDetached(name, arg string) error {
	cmd := exec.Command(name, arg)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck // reap only; the result is not observed
	return nil
}

// Log reports every URL as openable and only logs open requests.
type Log struct {
	logger *slog.Logger
}

// CanOpen always reports true.
func (Log) CanOpen(*url.URL) bool { return true }

// Open logs u at info level.
func (l Log) Open(u *url.URL) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("open url (log only)", slog.String("url", u.String()))
}

// Disabled never opens anything.
type Disabled struct{}

// CanOpen always reports false.
func (Disabled) CanOpen(*url.URL) bool { return false }

// Open does nothing.
func (Disabled) Open(*url.URL) {}
