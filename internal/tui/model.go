package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/ghostbar/internal/capture"
	"github.com/diogo/ghostbar/internal/chat"
	"github.com/diogo/ghostbar/internal/events"
	"github.com/diogo/ghostbar/internal/overlay"
)

// typingCursor trails the text of a streaming answer
const typingCursor = "▌"

// Controller defines the overlay operations needed by the TUI
type Controller interface {
	Submit(ctx context.Context, prompt string) (uint64, error)
	Ask(ctx context.Context, prompt string) (string, error)
	Apply(ev events.Event) bool
	Events() <-chan events.Event
	Session() *chat.Session
	Attach(dataURL string)
	Attachment() string
	Show()
	Hide()
	Reset()
	Model() string
}

var _ Controller = (*overlay.Controller)(nil)

// Options configures the overlay model
type Options struct {
	// Stream answers as they arrive instead of waiting for the full text
	Stream bool
	// CopyOnFinish copies every completed answer to the clipboard
	CopyOnFinish bool
	Capture      capture.Options
}

// Message types for the TUI
type (
	overlayEventMsg struct {
		event events.Event
	}
	eventsClosedMsg struct{}
	askDoneMsg      struct {
		err error
	}
	attachedMsg struct {
		attachment *capture.Attachment
		err        error
	}
	copiedMsg struct {
		err error
	}
)

// clipboardWrite is replaced in tests
var clipboardWrite = clipboard.WriteAll

// Model represents the overlay state
type Model struct {
	ctx  context.Context
	ctrl Controller
	opts Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	ready    bool
	// asking is set from a non-streaming submit until its askDoneMsg
	// arrives, covering the gap before Ask takes the request gate
	asking   bool
	notice   string
	err      error
	quitting bool

	width  int
	height int
}

// NewModel creates the overlay model and shows the overlay
func NewModel(ctx context.Context, ctrl Controller, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your screen... (/image <path> to attach a screenshot)"
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(currentTheme.Text)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(currentTheme.TextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	ctrl.Show()

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		opts:     opts,
		textarea: ta,
		spinner:  s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForEvent(m.ctrl.Events()),
	)
}

// waitForEvent receives one controller event. It is re-armed after each event.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return overlayEventMsg{event: ev}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	session := m.ctrl.Session()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.ctrl.Hide()
			return m, tea.Quit

		case "esc":
			if len(session.Messages()) == 0 && !m.busy() {
				m.quitting = true
				m.ctrl.Hide()
				return m, tea.Quit
			}
			m.ctrl.Hide()
			m.ctrl.Show()
			m.textarea.Reset()
			m.notice = "Dismissed"
			m.err = nil
			m.updateViewport()
			return m, nil

		case "ctrl+l":
			m.ctrl.Reset()
			m.textarea.Reset()
			m.notice = ""
			m.err = nil
			m.updateViewport()
			return m, nil

		case "ctrl+y":
			return m, copyLastAnswer(session)

		case "enter":
			if m.busy() {
				return m, nil
			}
			return m.submit()
		}

	case overlayEventMsg:
		if m.ctrl.Apply(msg.event) {
			m.updateViewport()
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, waitForEvent(m.ctrl.Events()))
		if msg.event.Type == events.StreamDone && m.opts.CopyOnFinish {
			cmds = append(cmds, copyLastAnswer(session))
		}

	case eventsClosedMsg:
		// controller closed; nothing more will arrive

	case askDoneMsg:
		m.asking = false
		if msg.err != nil && !errors.Is(msg.err, chat.ErrBusy) && !errors.Is(msg.err, overlay.ErrEmptyPrompt) &&
			!errors.Is(msg.err, overlay.ErrDismissed) {
			m.err = msg.err
		}
		m.updateViewport()
		m.viewport.GotoBottom()
		if m.opts.CopyOnFinish && msg.err == nil {
			cmds = append(cmds, copyLastAnswer(session))
		}

	case attachedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.notice = ""
		} else {
			m.ctrl.Attach(msg.attachment.DataURL)
			m.err = nil
			m.notice = fmt.Sprintf("Screenshot attached (%dx%d)", msg.attachment.Width, msg.attachment.Height)
		}

	case copiedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("copy failed: %w", msg.err)
		} else {
			m.notice = "Copied to clipboard"
		}

	case spinner.TickMsg:
		if m.busy() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if !m.busy() {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
			session.SetInput(m.textarea.Value())
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles the enter key: slash commands or a question
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())

	switch {
	case input == "/exit" || input == "/quit":
		m.quitting = true
		m.ctrl.Hide()
		return m, tea.Quit

	case input == "/clear":
		m.ctrl.Reset()
		m.textarea.Reset()
		m.notice = ""
		m.err = nil
		m.updateViewport()
		return m, nil

	case input == "/image" || strings.HasPrefix(input, "/image "):
		path := strings.TrimSpace(strings.TrimPrefix(input, "/image"))
		m.textarea.Reset()
		if path == "" {
			m.err = errors.New("usage: /image <path>")
			return m, nil
		}
		m.notice = "Attaching " + path + "..."
		return m, attachImage(path, m.opts.Capture)
	}

	if input == "" && m.ctrl.Attachment() == "" {
		return m, nil
	}

	m.err = nil
	m.notice = ""
	m.textarea.Reset()

	if !m.opts.Stream {
		m.asking = true
		return m, tea.Batch(m.ask(input), m.spinner.Tick)
	}

	if _, err := m.ctrl.Submit(m.ctx, input); err != nil {
		if !errors.Is(err, overlay.ErrEmptyPrompt) && !errors.Is(err, chat.ErrBusy) {
			m.err = err
		}
		return m, nil
	}

	m.updateViewport()
	m.viewport.GotoBottom()
	return m, m.spinner.Tick
}

// busy reports whether a request is in flight or about to start
func (m Model) busy() bool {
	return m.asking || m.ctrl.Session().IsProcessing()
}

// ask runs the blocking request off the UI loop
func (m Model) ask(prompt string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.Ask(ctx, prompt)
		return askDoneMsg{err: err}
	}
}

func attachImage(path string, opts capture.Options) tea.Cmd {
	return func() tea.Msg {
		att, err := capture.FromFile(path, opts)
		return attachedMsg{attachment: att, err: err}
	}
}

func copyLastAnswer(session *chat.Session) tea.Cmd {
	return func() tea.Msg {
		msg, ok := session.LastAssistantMessage()
		if !ok {
			return copiedMsg{err: errors.New("no answer to copy yet")}
		}
		return copiedMsg{err: clipboardWrite(msg.Content)}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 5
	statusHeight := 2

	vpHeight := m.height - headerHeight - inputHeight - statusHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	contentWidth := m.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 2)
	m.updateViewport()
}

// updateViewport refreshes the viewport content from the session
func (m *Model) updateViewport() {
	m.viewport.SetContent(renderMessages(m.ctrl.Session(), m.viewport.Width-4))
}

// renderMessages renders the log plus the live typing text of an active stream
func renderMessages(session *chat.Session, width int) string {
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	for i, msg := range session.Messages() {
		if i > 0 {
			content.WriteString("\n")
		}
		if msg.IsUser() {
			content.WriteString(userLabelStyle.Render("You"))
			content.WriteString("\n")
			content.WriteString(userTextStyle.Width(width).Render(msg.Content))
		} else {
			content.WriteString(assistantLabelStyle.Render("Assistant"))
			content.WriteString("\n")
			content.WriteString(assistantTextStyle.Width(width).Render(msg.Content))
		}
		content.WriteString("\n")
	}

	if session.IsStreaming() {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(assistantLabelStyle.Render("Assistant"))
		content.WriteString("\n")
		typing := session.StreamingText() + typingCursorStyle.Render(typingCursor)
		content.WriteString(assistantTextStyle.Width(width).Render(typing))
		content.WriteString("\n")
	}

	return content.String()
}

// View renders the overlay
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	session := m.ctrl.Session()
	contentWidth := m.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	var sections []string

	headerParts := []string{
		titleStyle.Render("◆ ghostbar"),
		separatorStyle.Render("  •  "),
		subtitleStyle.Render(m.ctrl.Model()),
	}
	if m.ctrl.Attachment() != "" {
		headerParts = append(headerParts,
			separatorStyle.Render("  •  "),
			attachedStyle.Render("screenshot attached"),
		)
	}
	header := headerStyle.Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Center, headerParts...))
	sections = append(sections, header)

	var messagesContent string
	if len(session.Messages()) == 0 && !session.IsStreaming() {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	var inputContent string
	if m.busy() && session.StreamingText() == "" {
		inputContent = m.spinner.View() + loadingStyle.Render(" Thinking...")
	} else if m.busy() {
		inputContent = hintStyle.Render("Answering...")
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("Ask"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	switch {
	case m.err != nil:
		sections = append(sections, errorStyle.Render("✗ "+m.err.Error()))
	case m.notice != "":
		sections = append(sections, noticeStyle.Render(m.notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		welcomeTitleStyle.Width(width).Render("What's on your screen?"),
		"",
		welcomeStyle.Width(width).Render("Type a question, or attach a screenshot with /image <path>"),
	)

	topPadding := (m.viewport.Height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Dismiss"},
		{"Ctrl+Y", "Copy"},
		{"Ctrl+L", "Clear"},
		{"Ctrl+C", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}

	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// RunOverlay starts the overlay program and blocks until it exits
func RunOverlay(ctx context.Context, ctrl Controller, opts Options) error {
	m := NewModel(ctx, ctrl, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
