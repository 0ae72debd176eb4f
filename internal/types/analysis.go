// Package types holds the response contract shared by the reasoning client,
// the conversation state and every presentation surface.
package types

// TripleTheoryAnalysis is the per-framework breakdown of an ethical judgment.
type TripleTheoryAnalysis struct {
	RuleConsequentialism     string `json:"ruleConsequentialism"`
	KantianContractualism    string `json:"kantianContractualism"`
	ScanlonianContractualism string `json:"scanlonianContractualism"`
	Synthesis                string `json:"synthesis"`
}

// AnalysisResult is the structured object the reasoning engine returns for a
// single exchange.
type AnalysisResult struct {
	ShortAnswer           string                `json:"shortAnswer"`
	NeedsClarification    bool                  `json:"needsClarification"`
	ClarificationQuestion string                `json:"clarificationQuestion,omitempty"`
	Analysis              *TripleTheoryAnalysis `json:"analysis,omitempty"`
}

// Actionable reports whether the result carries an analysis that can be shown.
// A result that asks for clarification is never actionable, even when the
// engine attached an analysis anyway.
func (r *AnalysisResult) Actionable() bool {
	return r != nil && r.Analysis != nil && !r.NeedsClarification
}

// Clone returns a deep copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Analysis != nil {
		a := *r.Analysis
		out.Analysis = &a
	}
	return &out
}
