// Package ui renders the chat session in the terminal.
//
// Two renderers exist: a bubbletea TUI for interactive terminals and a
// plain line renderer for pipes and CI. Both are driven by session
// snapshots and both receive the session's location and scroll effects.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/docchat/internal/session"
)

// Fixed texts of the chat screen.
const (
	HeaderTitle      = "Document Search ChatBot"
	InputPlaceholder = "Enter response......"
)

// Renderer displays session snapshots.
type Renderer interface {
	session.Environment

	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Render displays s. It never blocks on the terminal.
	Render(s session.State)

	// Done is closed once the user has left the renderer.
	Done() <-chan struct{}

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Dispatcher forwards a key event to the session.
type Dispatcher func(session.Event)

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	Input      io.Reader
	ForcePlain bool
	NoColor    bool
	Dispatch   Dispatcher
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithInput sets the keyboard source of the TUI.
func WithInput(r io.Reader) ConfigOption {
	return func(c *Config) {
		c.Input = r
	}
}

// WithDispatcher sets where TUI key events go.
func WithDispatcher(d Dispatcher) ConfigOption {
	return func(c *Config) {
		c.Dispatch = d
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// UsePlain reports whether cfg selects the plain renderer: forced,
// non-terminal output, or a CI environment.
func UsePlain(cfg Config) bool {
	return cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI()
}

// NewRenderer creates the renderer suited to cfg and the environment,
// falling back to plain output when the TUI cannot be created.
func NewRenderer(cfg Config) Renderer {
	if UsePlain(cfg) {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
