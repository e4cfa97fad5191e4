package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/docchat/internal/session"
)

// notice identifies the status lines printed after a response.
type notice struct {
	request uint64
	err     string
	empty   bool
}

// PlainRenderer appends the transcript to a text stream (for CI/pipes).
// Rendering the same snapshot twice prints nothing new.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	printed  int
	noticed  notice
	stopOnce sync.Once
	done     chan struct{}
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:  cfg.Output,
		done: make(chan struct{}),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// Render implements Renderer.
func (r *PlainRenderer) Render(s session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A shorter transcript means a new session; start over.
	if len(s.Messages) < r.printed {
		r.printed = 0
		r.noticed = notice{}
	}

	for _, msg := range s.Messages[r.printed:] {
		if msg.Origin == session.OriginUser {
			_, _ = fmt.Fprintf(r.out, "> %s\n", msg.Text)
		} else {
			_, _ = fmt.Fprintf(r.out, "  %s\n", msg.Text)
		}
	}
	r.printed = len(s.Messages)

	if s.Loading || !s.Searched {
		return
	}

	n := notice{request: s.LastRequest, empty: s.ShowEmptyResults()}
	if s.Err != nil {
		n.err = s.Err.Message
	}
	if n == r.noticed {
		return
	}
	r.noticed = n

	if n.err != "" {
		_, _ = fmt.Fprintf(r.out, "! %s\n", n.err)
	}
	if n.empty {
		_, _ = fmt.Fprintln(r.out, session.EmptyResultsMessage)
	}
}

// UpdateLocation implements session.Environment. A text stream has no
// location, so it is only logged.
func (r *PlainRenderer) UpdateLocation(path string) {
	slog.Debug("location_updated", slog.String("path", path))
}

// ScrollToMain implements session.Environment. Appended output is always
// at the end already.
func (r *PlainRenderer) ScrollToMain() {}

// Done implements Renderer. It is closed by Stop.
func (r *PlainRenderer) Done() <-chan struct{} {
	return r.done
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	r.stopOnce.Do(func() { close(r.done) })
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
