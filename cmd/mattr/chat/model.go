// Package chat provides the interactive terminal chat for mattr.
// The Model is a bubbletea program over a single *session.Conversation:
// every frame is rendered from a conversation snapshot, and each exchange
// runs inside a tea.Cmd with its own cancellable context.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"mattr/cmd/mattr/ui"
	"mattr/internal/logging"
	"mattr/internal/session"
)

// =============================================================================
// VIEW MODES
// =============================================================================

// ViewMode selects what the main pane shows.
type ViewMode int

const (
	ChatView ViewMode = iota
	AboutView
)

func (v ViewMode) String() string {
	if v == AboutView {
		return "about"
	}
	return "chat"
}

// =============================================================================
// MESSAGES
// =============================================================================

// exchangeDoneMsg reports that an in-flight exchange has appended its reply.
type exchangeDoneMsg struct {
	turn    session.Turn
	outcome session.Outcome
	err     error
}

// =============================================================================
// MODEL
// =============================================================================

const (
	headerHeight = 2 // title line + divider
	inputHeight  = 5 // textarea (3) + border
	footerHeight = 2 // margin + help line

	// InputPlaceholder is shown in the empty input.
	InputPlaceholder = "Ask a moral question (e.g., Should I buy a diesel car?)"
	// LoadingText is shown while an exchange is pending.
	LoadingText = "Applying Ethical Framework..."
)

// Config configures the chat model.
type Config struct {
	Theme  ui.Theme
	Logger *zap.Logger
	// Notice is shown in the footer at startup, such as a config warning.
	Notice string
}

// Model is the bubbletea model for the terminal chat.
type Model struct {
	conv *session.Conversation

	// UI components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	styles   ui.Styles
	md       *ui.Markdown

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc // cancels the in-flight exchange, nil when idle

	// State
	viewMode  ViewMode
	isLoading bool
	notice    string
	body      string // rendered conversation, without the loading line
	width     int
	height    int
	ready     bool

	logger *zap.Logger
}

// New creates a chat model over conv. Exchanges started by the model derive
// their context from ctx.
func New(ctx context.Context, conv *session.Conversation, cfg Config) Model {
	styles := ui.NewStyles(cfg.Theme)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Get(logging.CategoryUI)
	}

	ta := textarea.New()
	ta.Placeholder = InputPlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	m := Model{
		conv:     conv,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		styles:   styles,
		md:       ui.NewMarkdown(cfg.Theme, nil),
		ctx:      ctx,
		notice:   cfg.Notice,
		logger:   logger,
	}
	m.isLoading = conv.Pending()
	m.refresh(true)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Loading reports whether an exchange is in flight.
func (m Model) Loading() bool { return m.isLoading }

// Mode returns the current view mode.
func (m Model) Mode() ViewMode { return m.viewMode }
