package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/docchat/internal/session"
)

// chromeLines is the number of screen lines outside the transcript:
// header with its rule, status line, input line and key hints.
const chromeLines = 5

// frame is what the renderer has accumulated since the model last looked.
type frame struct {
	state    session.State
	hasState bool
	title    string
	scroll   bool
}

// TUIRenderer provides the interactive chat screen using bubbletea.
//
// Snapshots and effects are merged into a pending frame and the program
// is only poked with a refreshMsg, so the session loop never waits on
// the terminal.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *chatModel
	pending frame
	dirty   bool
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	r := &TUIRenderer{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	r.model = newChatModel(GetStyles(cfg.NoColor || DetectNoColor()), cfg.Dispatch, r.take)
	return r, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	if r.cfg.Input != nil {
		opts = append(opts, tea.WithInput(r.cfg.Input))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// Render implements Renderer.
func (r *TUIRenderer) Render(s session.State) {
	r.update(func(f *frame) {
		f.state = s
		f.hasState = true
	})
}

// UpdateLocation implements session.Environment by retitling the terminal.
func (r *TUIRenderer) UpdateLocation(path string) {
	r.update(func(f *frame) { f.title = path })
}

// ScrollToMain implements session.Environment.
func (r *TUIRenderer) ScrollToMain() {
	r.update(func(f *frame) { f.scroll = true })
}

func (r *TUIRenderer) update(fn func(*frame)) {
	r.mu.Lock()
	fn(&r.pending)
	notify := !r.dirty
	r.dirty = true
	program := r.program
	r.mu.Unlock()

	if notify && program != nil {
		go program.Send(refreshMsg{})
	}
}

// take hands the pending frame to the model. The state is kept so a
// later frame without a new snapshot still carries the latest one.
func (r *TUIRenderer) take() frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.pending
	r.pending = frame{state: f.state, hasState: f.hasState}
	r.dirty = false
	return f
}

// Done implements Renderer.
func (r *TUIRenderer) Done() <-chan struct{} {
	return r.done
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	program.Quit()

	// Do not hang on an unresponsive terminal.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type refreshMsg struct{}

// chatModel is the bubbletea model of the chat screen.
type chatModel struct {
	state    session.State
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	dispatch Dispatcher
	source   func() frame
	width    int
	height   int
	quitting bool
}

func newChatModel(styles Styles, dispatch Dispatcher, source func() frame) *chatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	if dispatch == nil {
		dispatch = func(session.Event) {}
	}

	m := &chatModel{
		viewport: viewport.New(80, 24-chromeLines),
		spinner:  s,
		styles:   styles,
		dispatch: dispatch,
		source:   source,
		width:    80,
		height:   24,
	}
	m.viewport.SetContent(m.renderTranscript())
	return m
}

// Init implements tea.Model.
func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return refreshMsg{} },
	)
}

// Update implements tea.Model.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case refreshMsg:
		if m.source == nil {
			return m, nil
		}
		return m, m.apply(m.source())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		m.dispatch(session.Submit{})

	case tea.KeyBackspace:
		m.dispatch(session.Backspace{})

	case tea.KeySpace:
		m.dispatch(session.KeyTyped{Rune: ' '})

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.dispatch(session.KeyTyped{Rune: r})
		}

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeLines, 3)
	m.viewport.SetContent(m.renderTranscript())
}

// apply takes over a frame. Scrolling happens after the new content is in.
func (m *chatModel) apply(f frame) tea.Cmd {
	if f.hasState {
		m.state = f.state
		m.viewport.SetContent(m.renderTranscript())
	}
	if f.scroll {
		m.viewport.GotoBottom()
	}
	if f.title != "" {
		return tea.SetWindowTitle("docchat " + f.title)
	}
	return nil
}

// View implements tea.Model.
func (m *chatModel) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.styles.Header.Width(m.width).Render(HeaderTitle),
		m.viewport.View(),
		m.renderStatus(),
		m.renderInput(),
		m.styles.Dim.Render("enter search • pgup/pgdn scroll • esc quit"),
	}
	return strings.Join(sections, "\n")
}

func (m *chatModel) renderTranscript() string {
	width := max(m.width, 20)
	// Leave a quarter of the line free on the opposite side of each bubble.
	bubble := width * 3 / 4

	lines := make([]string, 0, len(m.state.Messages))
	for _, msg := range m.state.Messages {
		if msg.Origin == session.OriginUser {
			text := m.styles.User.Width(bubble).Align(lipgloss.Right).Render(msg.Text)
			lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, text))
			continue
		}
		lines = append(lines, m.styles.System.Width(bubble).Render(msg.Text))
	}
	return strings.Join(lines, "\n")
}

func (m *chatModel) renderStatus() string {
	s := m.state
	if s.Loading {
		return m.spinner.View() + " " + m.styles.Status.Render(fmt.Sprintf("Searching for %q...", s.Query))
	}

	var parts []string
	if s.Err != nil {
		parts = append(parts, m.styles.Error.Render(s.Err.Message))
	}
	switch {
	case s.ShowEmptyResults():
		parts = append(parts, m.styles.Notice.Render(session.EmptyResultsMessage))
	case s.Searched && s.Err == nil:
		parts = append(parts, m.styles.Status.Render(matchesLabel(s.NumMatches)))
	}
	return strings.Join(parts, "  ")
}

func (m *chatModel) renderInput() string {
	prompt := m.styles.Prompt.Render("> ")
	if m.state.Input.Mode == session.InputIdle {
		return prompt + m.styles.Placeholder.Render(InputPlaceholder)
	}
	return prompt + m.state.Input.Buffer + "█"
}

func matchesLabel(n int) string {
	if n == 1 {
		return "1 match"
	}
	return fmt.Sprintf("%d matches", n)
}

var _ Renderer = (*TUIRenderer)(nil)
