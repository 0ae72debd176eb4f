package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mattr/cmd/mattr/ui"
	"mattr/internal/session"
	"mattr/internal/types"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

const (
	// ExpandHintText labels a collapsed analysis panel.
	ExpandHintText = "VIEW ETHICAL ANALYSIS"
	// CollapseHintText labels an expanded analysis panel.
	CollapseHintText = "HIDE ETHICAL ANALYSIS"
	// ClarificationHeading heads a clarification request.
	ClarificationHeading = "Clarification Needed"
	// ClarificationDefault is shown when the engine asked for detail without a question.
	ClarificationDefault = "I need a bit more detail to provide an accurate ethical judgment."
	// SkipHint tells the user how to skip a clarification request.
	SkipHint = "ctrl+s: skip & use general assumptions"
)

// refresh rebuilds the viewport content. A full refresh re-renders the
// conversation and scrolls to the newest turn; otherwise only the loading
// line changes and the scroll position is kept unless already at the bottom.
func (m *Model) refresh(full bool) {
	if m.viewMode == AboutView {
		if full {
			m.viewport.SetContent(m.renderAbout(m.viewport.Width))
			m.viewport.GotoTop()
		}
		return
	}

	follow := full || m.viewport.AtBottom()
	if full || m.body == "" {
		m.body = m.renderConversation(m.conv.Snapshot(), m.viewport.Width)
	}
	m.viewport.SetContent(m.content())
	if follow {
		m.viewport.GotoBottom()
	}
}

// refreshKeepOffset re-renders the conversation without scrolling.
func (m *Model) refreshKeepOffset() {
	if m.viewMode == AboutView {
		return
	}
	m.body = m.renderConversation(m.conv.Snapshot(), m.viewport.Width)
	m.viewport.SetContent(m.content())
}

func (m Model) content() string {
	if !m.isLoading {
		return m.body
	}
	return m.body + "\n" + m.renderLoading()
}

func (m Model) renderLoading() string {
	return m.spinner.View() + " " + m.styles.Loading.Render(LoadingText)
}

// renderConversation renders every turn in order.
func (m Model) renderConversation(snap session.Snapshot, width int) string {
	if width < 20 {
		width = 20
	}

	latestID := ""
	if t, ok := snap.LatestActionable(); ok {
		latestID = t.ID
	}

	var sb strings.Builder
	for i, t := range snap.Turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		if t.IsUser() {
			sb.WriteString(m.renderUserTurn(t, width))
		} else {
			sb.WriteString(m.renderAssistantTurn(t, width, t.ID == latestID))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderUserTurn(t session.Turn, width int) string {
	label := m.styles.UserLabel.Render("You")
	body := m.styles.UserBubble.Width(width - 2).Render(t.Content)
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

func (m Model) renderAssistantTurn(t session.Turn, width int, latest bool) string {
	label := m.styles.AssistantLabel.Render("Mattr")
	inner := width - 4

	parts := []string{label}
	if t.Data == nil {
		// Greeting and apology carry no structured data
		parts = append(parts, m.styles.AssistantReply.Width(inner).Render(t.Content))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	parts = append(parts, m.styles.AssistantReply.Width(inner).Render(m.styles.ShortAnswer.Render(t.Data.ShortAnswer)))

	switch {
	case t.NeedsClarification():
		parts = append(parts, m.renderClarification(t.Data, inner))
	case t.Actionable():
		if t.Expanded {
			parts = append(parts, m.renderExpandHint(t, latest, true))
			parts = append(parts, m.renderAnalysis(t.Data.Analysis, width-2))
		} else {
			parts = append(parts, m.renderExpandHint(t, latest, false))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderExpandHint(t session.Turn, latest, expanded bool) string {
	text := ExpandHintText
	marker := "▸"
	if expanded {
		text = CollapseHintText
		marker = "▾"
	}
	shortcut := fmt.Sprintf("(/expand %d)", t.Seq)
	if latest {
		shortcut = "(ctrl+e)"
	}
	return m.styles.ExpandHint.Render(fmt.Sprintf("%s %s %s", marker, text, shortcut))
}

func (m Model) renderClarification(data *types.AnalysisResult, width int) string {
	question := strings.TrimSpace(data.ClarificationQuestion)
	if question == "" {
		question = ClarificationDefault
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		m.styles.ClarifyHeading.Render(ClarificationHeading),
		m.styles.ClarifyText.Width(width).Render(question),
		"",
		m.styles.ClarifyHint.Render(SkipHint),
	)
}

// renderAnalysis renders the four sections of an expanded panel.
func (m Model) renderAnalysis(a *types.TripleTheoryAnalysis, width int) string {
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	sections := []struct {
		title string
		text  string
	}{
		{ui.TitleRuleConsequentialism, a.RuleConsequentialism},
		{ui.TitleKantianContractualism, a.KantianContractualism},
		{ui.TitleScanlonianContractualism, a.ScanlonianContractualism},
	}

	var parts []string
	parts = append(parts, m.styles.PanelTitle.Render("Ethical Framework Analysis"), "")
	for _, s := range sections {
		parts = append(parts, m.styles.FrameworkTitle(s.title))
		parts = append(parts, m.md.Render(s.text, inner), "")
	}
	parts = append(parts, m.styles.Synthesis.Render(ui.TitleSynthesis))
	parts = append(parts, m.md.Render("*"+strings.TrimSpace(a.Synthesis)+"*", inner))

	return m.styles.Panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	content := m.styles.Content.Padding(0, 2).Render(m.viewport.View())

	border := m.styles.Theme.Border
	if m.isLoading {
		border = m.styles.Theme.Muted
	}
	inputArea := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(m.textarea.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		content,
		inputArea,
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" Mattr ")
	badge := m.styles.Badge.Render("Triple Theory")

	var status string
	if m.isLoading {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Busy.Render("Thinking..."))
	} else {
		status = m.styles.Ready.Render("● Ready")
	}
	if m.viewMode == AboutView {
		status = m.styles.Muted.Render(AboutTitle) + "  " + status
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge, "  ", status)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

func (m Model) renderFooter() string {
	snap := m.conv.Snapshot()
	_, canExpand := snap.LatestActionable()
	_, canSkip := snap.LastClarification()

	keys := m.keys.contextual(m.isLoading, canExpand, canSkip, m.viewMode)

	notice := ""
	if m.notice != "" {
		notice = m.styles.Warning.Render(m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		notice,
		m.styles.Footer.Render(m.help.View(keys)),
	)
}
