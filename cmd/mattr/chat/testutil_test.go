// This file contains fakes and helpers for testing the chat package.
package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"mattr/cmd/mattr/ui"
	"mattr/internal/session"
	"mattr/internal/types"
)

// =============================================================================
// FAKE REASONER
// =============================================================================

// stubReasoner replays scripted results. When block is set every call waits
// for its context to end.
type stubReasoner struct {
	mu       sync.Mutex
	results  []*types.AnalysisResult
	block    bool
	messages []string
}

func (s *stubReasoner) Converse(ctx context.Context, _ []types.HistoryItem, message string) (*types.AnalysisResult, error) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	block := s.block
	var r *types.AnalysisResult
	if len(s.results) > 0 {
		r = s.results[0]
		s.results = s.results[1:]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r == nil {
		return nil, errors.New("no scripted result")
	}
	return r, nil
}

func (s *stubReasoner) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func answer(short string) *types.AnalysisResult {
	return &types.AnalysisResult{
		ShortAnswer: short,
		Analysis: &types.TripleTheoryAnalysis{
			RuleConsequentialism:     "Widespread diesel use raises pollution.",
			KantianContractualism:    "Could everyone will this freely?",
			ScanlonianContractualism: "Neighbours could reasonably reject the fumes.",
			Synthesis:                "All three views lean against it.",
		},
	}
}

func clarify(short, question string) *types.AnalysisResult {
	return &types.AnalysisResult{
		ShortAnswer:           short,
		NeedsClarification:    true,
		ClarificationQuestion: question,
	}
}

// =============================================================================
// TEST MODEL BUILDER
// =============================================================================

// NewTestModel creates a sized Model over a fresh conversation.
func NewTestModel(t *testing.T, r session.Reasoner) (Model, *session.Conversation) {
	t.Helper()
	conv := session.New(r, session.WithLogger(zap.NewNop()))
	m := New(context.Background(), conv, Config{Theme: ui.LightTheme(), Logger: zap.NewNop()})
	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return newModel.(Model), conv
}

// collectMsgs runs cmd, flattening batches, and returns every message produced.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collectMsgs(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// waitDone runs cmd and returns the exchange completion it produces.
func waitDone(t *testing.T, cmd tea.Cmd) exchangeDoneMsg {
	t.Helper()
	for _, msg := range collectMsgs(cmd) {
		if done, ok := msg.(exchangeDoneMsg); ok {
			return done
		}
	}
	t.Fatal("command produced no exchangeDoneMsg")
	return exchangeDoneMsg{}
}

// send types text and presses Enter.
func send(m Model, text string) (Model, tea.Cmd) {
	m.textarea.SetValue(text)
	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return newModel.(Model), cmd
}

// exchange sends text and feeds the completion back into the model.
func exchange(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, cmd := send(m, text)
	done := waitDone(t, cmd)
	newModel, _ := m.Update(done)
	return newModel.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	newModel, cmd := m.Update(tea.KeyMsg{Type: k})
	return newModel.(Model), cmd
}
