package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"mattr/internal/session"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoading {
			m.refresh(false)
		}
		return m, cmd

	case exchangeDoneMsg:
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.isLoading = false
		m.textarea.Focus()
		if msg.outcome == session.OutcomeFailed && m.notice == "" {
			m.notice = "The request failed. See the reply above."
		}
		m.logger.Debug("exchange done",
			zap.String("turn", msg.turn.ID),
			zap.Stringer("outcome", msg.outcome),
			zap.Error(msg.err),
		)
		m.refresh(true)
		return m, nil
	}

	// Forward everything else to the input
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// handleKey processes the bindings owned by the chat. Unhandled keys fall
// through to the textarea.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Back):
		if m.viewMode == AboutView {
			m.viewMode = ChatView
			m.refresh(true)
			return m, nil, true
		}
		m.stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.About):
		m.toggleAbout()
		return m, nil, true

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true

	case key.Matches(msg, m.keys.Cancel):
		if m.isLoading && m.cancel != nil {
			m.cancel()
			m.notice = "Request cancelled."
			m.logger.Info("exchange cancelled by user")
		}
		return m, nil, true
	}

	if m.viewMode == AboutView {
		// The about page is read-only
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}

	switch {
	case key.Matches(msg, m.keys.Expand):
		m.toggleLatest()
		return m, nil, true

	case key.Matches(msg, m.keys.Skip):
		model, cmd := m.skip()
		return model, cmd, true

	case key.Matches(msg, m.keys.Submit):
		// Bracketed paste: newlines inside a paste never submit
		if msg.Paste {
			return m, nil, false
		}
		if m.isLoading {
			return m, nil, true
		}
		model, cmd := m.handleSubmit()
		return model, cmd, true
	}

	return m, nil, false
}

// handleSubmit sends the input, or runs it as a slash command.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := m.textarea.Value()
	input := strings.TrimSpace(raw)
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// Sent as typed; trimming is only for the checks above
	ex, err := m.conv.Submit(raw)
	if err != nil {
		m.notice = rejectionNotice(err)
		return m, nil
	}
	m.textarea.Reset()
	return m.startExchange(ex)
}

// handleCommand processes slash commands.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]
	args := parts[1:]

	m.textarea.Reset()
	m.notice = ""

	switch cmd {
	case "/quit", "/exit", "/q":
		m.stop()
		return m, tea.Quit

	case "/about":
		m.toggleAbout()
		return m, nil

	case "/help":
		m.help.ShowAll = !m.help.ShowAll
		if m.ready {
			m.resize(m.width, m.height)
		}
		return m, nil

	case "/expand":
		if len(args) == 0 {
			m.toggleLatest()
			return m, nil
		}
		seq, err := strconv.Atoi(args[0])
		if err != nil {
			m.notice = fmt.Sprintf("Usage: /expand [turn number], got %q", args[0])
			return m, nil
		}
		m.toggleSeq(seq)
		return m, nil

	case "/skip":
		return m.skip()

	default:
		m.notice = fmt.Sprintf("Unknown command: %s (try /help)", cmd)
		return m, nil
	}
}

// startExchange runs ex in a command and disables input until it ends.
func (m Model) startExchange(ex *session.Exchange) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.isLoading = true
	m.notice = ""
	m.textarea.Blur()
	m.viewMode = ChatView
	m.refresh(true)

	m.logger.Debug("exchange started", zap.String("turn", ex.UserTurn().ID))
	return m, tea.Batch(m.spinner.Tick, resolveExchange(ctx, cancel, ex))
}

func resolveExchange(ctx context.Context, cancel context.CancelFunc, ex *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		turn := ex.Resolve(ctx)
		return exchangeDoneMsg{turn: turn, outcome: ex.Outcome(), err: ex.Err()}
	}
}

// skip sends the fixed skip-clarification message. It only applies when the
// latest assistant turn asks for clarification and nothing is pending.
func (m Model) skip() (tea.Model, tea.Cmd) {
	if m.isLoading {
		return m, nil
	}
	if _, ok := m.conv.LastClarification(); !ok {
		m.notice = "Nothing to skip: the last reply did not ask for clarification."
		return m, nil
	}
	ex, err := m.conv.Submit(session.SkipClarificationText)
	if err != nil {
		m.notice = rejectionNotice(err)
		return m, nil
	}
	return m.startExchange(ex)
}

func (m *Model) toggleLatest() {
	t, ok := m.conv.Snapshot().LatestActionable()
	if !ok {
		return
	}
	m.conv.ToggleExpand(t.ID)
	m.refreshKeepOffset()
}

func (m *Model) toggleSeq(seq int) {
	for _, t := range m.conv.Snapshot().Turns {
		if t.Seq == seq && t.Actionable() {
			m.conv.ToggleExpand(t.ID)
			m.refreshKeepOffset()
			return
		}
	}
	m.notice = fmt.Sprintf("Turn %d has no ethical analysis.", seq)
}

func (m *Model) toggleAbout() {
	if m.viewMode == AboutView {
		m.viewMode = ChatView
	} else {
		m.viewMode = AboutView
	}
	m.refresh(true)
}

// stop cancels the in-flight exchange, if any.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	m.width = width
	m.height = height
	m.help.Width = width

	vpHeight := height - headerHeight - inputHeight - footerHeight
	if m.help.ShowAll {
		vpHeight -= 2
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	// Content style pads 2 columns on each side
	vpWidth := width - 4
	if vpWidth < 1 {
		vpWidth = 1
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	taWidth := width - 4
	if taWidth < 1 {
		taWidth = 1
	}
	m.textarea.SetWidth(taWidth)

	m.ready = true
	m.refresh(true)
}

func rejectionNotice(err error) string {
	switch {
	case errors.Is(err, session.ErrPending):
		return "Please wait for the current analysis to finish."
	case errors.Is(err, session.ErrEmptyInput):
		return ""
	default:
		return err.Error()
	}
}
