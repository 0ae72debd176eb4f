package session

import (
	"time"

	"mattr/internal/types"
)

// Fixed conversation texts.
const (
	// GreetingID is the id of the synthetic first turn.
	GreetingID = "intro"

	// Greeting is the content of the synthetic first turn.
	Greeting = "I am Mattr, your ethical assistant. Ask me a moral conundrum, and I will analyze it through three distinct ethical lenses to help you find the best way forward."

	// ApologyText is appended when an exchange ends in a propagated error.
	ApologyText = "I apologize, but I'm having trouble connecting to the ethical reasoning engine. Please check your API key and try again."

	// SkipClarificationText is sent on the user's behalf to skip a clarification request.
	SkipClarificationText = "Please proceed with general assumptions without further details."
)

// Turn is one message in the conversation. Expanded is the only field that
// changes after the turn is appended.
type Turn struct {
	ID        string                `json:"id"`
	Seq       int                   `json:"seq"`
	Role      types.Role            `json:"role"`
	Content   string                `json:"content"`
	Data      *types.AnalysisResult `json:"data,omitempty"`
	Expanded  bool                  `json:"expanded"`
	CreatedAt time.Time             `json:"createdAt"`
}

// IsUser reports whether the user authored the turn.
func (t Turn) IsUser() bool { return t.Role == types.RoleUser }

// Actionable reports whether the turn carries an analysis panel.
func (t Turn) Actionable() bool { return t.Role == types.RoleAssistant && t.Data.Actionable() }

// NeedsClarification reports whether the turn asks the user for more detail.
func (t Turn) NeedsClarification() bool {
	return t.Role == types.RoleAssistant && t.Data != nil && t.Data.NeedsClarification
}

func (t Turn) clone() Turn {
	t.Data = t.Data.Clone()
	return t
}

// Snapshot is a deep copy of the conversation at one point in time.
type Snapshot struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	Turns   []Turn `json:"turns"`
	Pending bool   `json:"pending"`
}

// Latest returns the last turn.
func (s Snapshot) Latest() Turn { return s.Turns[len(s.Turns)-1] }

// LatestActionable returns the most recent turn with an analysis panel.
func (s Snapshot) LatestActionable() (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Actionable() {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}

// LastClarification returns the latest assistant turn if it asks for
// clarification.
func (s Snapshot) LastClarification() (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role != types.RoleAssistant {
			continue
		}
		if s.Turns[i].NeedsClarification() {
			return s.Turns[i], true
		}
		return Turn{}, false
	}
	return Turn{}, false
}
