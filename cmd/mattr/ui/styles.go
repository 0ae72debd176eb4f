// Package ui provides the visual styling for the mattr terminal chat.
// The palette follows the stone greys of the web client, with one accent
// colour per ethical framework, in light and dark variants.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#fafaf9") // stone-50
	LightForeground = lipgloss.Color("#292524") // stone-800
	LightPrimary    = lipgloss.Color("#1c1917") // stone-900
	LightSecondary  = lipgloss.Color("#f5f5f4") // stone-100
	LightMuted      = lipgloss.Color("#78716c") // stone-500
	LightBorder     = lipgloss.Color("#e7e5e4") // stone-200
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#1c1917") // stone-900
	DarkForeground = lipgloss.Color("#f5f5f4") // stone-100
	DarkPrimary    = lipgloss.Color("#fafaf9") // stone-50
	DarkSecondary  = lipgloss.Color("#292524") // stone-800
	DarkMuted      = lipgloss.Color("#a8a29e") // stone-400
	DarkBorder     = lipgloss.Color("#44403c") // stone-700
	DarkCard       = lipgloss.Color("#292524") // stone-800

	// Framework accents (same in both modes)
	RuleConsequentialismColor     = lipgloss.Color("#2563eb") // blue-600
	KantianContractualismColor    = lipgloss.Color("#059669") // emerald-600
	ScanlonianContractualismColor = lipgloss.Color("#d97706") // amber-600

	// Semantic Colors
	Success = lipgloss.Color("#059669")
	Warning = lipgloss.Color("#d97706")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// ThemeByName resolves a configured theme. An empty or unknown name falls
// back to DetectTheme.
func ThemeByName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	default:
		return DetectTheme()
	}
}

// DetectTheme auto-detects based on terminal or returns light mode
func DetectTheme() Theme {
	// COLORFGBG is "foreground;background"; background 0-6 or 8 is dark.
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}

	// Check for explicit dark mode preference
	if os.Getenv("MATTR_DARK_MODE") == "1" {
		return DarkTheme()
	}

	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	// Text
	Muted lipgloss.Style

	// Conversation
	UserLabel      lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantReply lipgloss.Style
	ShortAnswer    lipgloss.Style
	Loading        lipgloss.Style

	// Clarification
	ClarifyHeading lipgloss.Style
	ClarifyText    lipgloss.Style
	ClarifyHint    lipgloss.Style

	// Analysis panel
	ExpandHint lipgloss.Style
	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Framework  map[string]lipgloss.Style
	Synthesis  lipgloss.Style

	// Status
	Ready   lipgloss.Style
	Busy    lipgloss.Style
	Warning lipgloss.Style

	// Components
	Spinner lipgloss.Style
	Divider lipgloss.Style
	Badge   lipgloss.Style
	Quote   lipgloss.Style
}

// Framework section titles, in display order.
const (
	TitleRuleConsequentialism     = "Rule Consequentialism"
	TitleKantianContractualism    = "Kantian Contractualism"
	TitleScanlonianContractualism = "Scanlonian Contractualism"
	TitleSynthesis                = "Final Synthesis"
)

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	framework := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().
			Foreground(c).
			Bold(true).
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(c)
	}

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(theme.Background).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		UserBubble: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2),

		AssistantLabel: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		AssistantReply: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.Border),

		ShortAnswer: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Loading: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		ClarifyHeading: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		ClarifyText: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Italic(true),

		ClarifyHint: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Secondary).
			Padding(0, 1),

		ExpandHint: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		PanelTitle: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Framework: map[string]lipgloss.Style{
			TitleRuleConsequentialism:     framework(RuleConsequentialismColor),
			TitleKantianContractualism:    framework(KantianContractualismColor),
			TitleScanlonianContractualism: framework(ScanlonianContractualismColor),
		},

		Synthesis: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Background(theme.Secondary).
			Bold(true).
			Padding(0, 1),

		Ready: lipgloss.NewStyle().
			Foreground(Success),

		Busy: lipgloss.NewStyle().
			Foreground(Warning),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Secondary).
			Foreground(theme.Muted).
			Padding(0, 1).
			Bold(true),

		Quote: lipgloss.NewStyle().
			Foreground(theme.Background).
			Background(theme.Primary).
			Italic(true).
			Padding(1, 2),
	}
}

// FrameworkTitle renders a section heading in its framework colour. Unknown
// titles render in the panel title style.
func (s Styles) FrameworkTitle(title string) string {
	if st, ok := s.Framework[title]; ok {
		return st.Render(title)
	}
	return s.PanelTitle.Render(title)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
