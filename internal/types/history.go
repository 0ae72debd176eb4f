package types

import "strings"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Roles used on the wire when history is replayed to the reasoning engine.
const (
	HistoryRoleUser  = "user"
	HistoryRoleModel = "model"
)

// Part is one text fragment of a history item.
type Part struct {
	Text string `json:"text"`
}

// HistoryItem is a prior turn in the shape the engine expects:
// {"role": "user"|"model", "parts": [{"text": ...}]}.
type HistoryItem struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates every part of the item.
func (h HistoryItem) Text() string {
	if len(h.Parts) == 1 {
		return h.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range h.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
