package session

import (
	"encoding/json"

	"mattr/internal/types"
)

// ProjectTurn converts a turn into the history item replayed to the engine.
// Assistant turns with structured data are replayed as the compact JSON of
// that data so the engine sees its own prior reasoning; every other turn is
// replayed as its display text.
func ProjectTurn(t Turn) types.HistoryItem {
	if t.Role == types.RoleUser {
		return types.HistoryItem{
			Role:  types.HistoryRoleUser,
			Parts: []types.Part{{Text: t.Content}},
		}
	}

	text := t.Content
	if t.Data != nil {
		if b, err := json.Marshal(t.Data); err == nil {
			text = string(b)
		}
	}
	return types.HistoryItem{
		Role:  types.HistoryRoleModel,
		Parts: []types.Part{{Text: text}},
	}
}

// ProjectHistory projects every turn in order.
func ProjectHistory(turns []Turn) []types.HistoryItem {
	out := make([]types.HistoryItem, len(turns))
	for i, t := range turns {
		out[i] = ProjectTurn(t)
	}
	return out
}
