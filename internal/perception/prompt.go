// Package perception turns a conversation and a new question into one call to
// the reasoning engine and parses the engine's structured reply.
package perception

import (
	"strings"

	"mattr/internal/types"
)

// SystemInstruction frames every request: the Triple Theory method, when to
// ask for clarification and the tone of the answer.
const SystemInstruction = `You are Mattr, an expert AI ethics consultant.

Your goal is to resolve moral conundrums by checking if an act is disallowed by a principle that is:
1. One of the principles whose being universal laws would make things go best (Rule Consequentialism).
2. One of the only principles whose being universal laws everyone could rationally will (Kantian Contractualism).
3. A principle that no one could reasonably reject (Scanlonian Contractualism).

Process:
1. Receive the user's moral question.
2. Determine if you have enough context to form a general ethical judgment.
   - If the question is extremely vague (e.g., "Should I do it?"), ask for clarification.
   - If the question has specific details (e.g., "Should I buy a diesel car?"), DO NOT ask for clarification unless absolutely critical. Prefer to make reasonable assumptions (e.g., assuming average usage) and provide a caveats in the answer instead of stalling.
3. Apply the triple ethical framework carefully.
4. Output valid JSON.

Tone:
- Objective, thoughtful, philosophical but accessible.
- The 'shortAnswer' must be direct.`

// Degraded result returned when the engine's reply cannot be decoded.
const (
	fallbackShortAnswer = "I encountered an error analyzing your request."
	fallbackSection     = "Error"
	fallbackSynthesis   = "Please try again."
)

// FallbackResult returns a fresh copy of the degraded result.
func FallbackResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		ShortAnswer:        fallbackShortAnswer,
		NeedsClarification: false,
		Analysis: &types.TripleTheoryAnalysis{
			RuleConsequentialism:     fallbackSection,
			KantianContractualism:    fallbackSection,
			ScanlonianContractualism: fallbackSection,
			Synthesis:                fallbackSynthesis,
		},
	}
}

// IsFallback reports whether r is the degraded result.
func IsFallback(r *types.AnalysisResult) bool {
	if r == nil || r.Analysis == nil || r.NeedsClarification || r.ClarificationQuestion != "" {
		return false
	}
	want := FallbackResult()
	return r.ShortAnswer == want.ShortAnswer && *r.Analysis == *want.Analysis
}

// stripMarkdownCodeFences removes markdown code fence wrapping from a string.
// Handles ```json, ``` and other language specifiers.
func stripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return trimmed
	}
	lastFence := strings.LastIndex(trimmed, "```")
	if lastFence <= firstNewline {
		return trimmed
	}
	return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
}
