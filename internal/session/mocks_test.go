package session

import (
	"context"
	"errors"
	"sync"

	"mattr/internal/types"
)

// fakeReasoner returns queued results in order. When gate is non-nil each
// call blocks until a value is received from it or ctx is done.
type fakeReasoner struct {
	mu      sync.Mutex
	results []*types.AnalysisResult
	errs    []error
	calls   []fakeCall
	gate    chan struct{}
	started chan struct{}
}

type fakeCall struct {
	history []types.HistoryItem
	message string
}

func (f *fakeReasoner) Converse(ctx context.Context, history []types.HistoryItem, message string) (*types.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{history: history, message: message})
	idx := len(f.calls) - 1
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return nil, errors.New("fakeReasoner: no result queued")
}

func (f *fakeReasoner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeReasoner) call(i int) fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// fallbackReasoner adds IsFallback to fakeReasoner.
type fallbackReasoner struct {
	*fakeReasoner
	fallback *types.AnalysisResult
}

func (f fallbackReasoner) IsFallback(r *types.AnalysisResult) bool {
	return r == f.fallback
}

func answer(short string) *types.AnalysisResult {
	return &types.AnalysisResult{
		ShortAnswer: short,
		Analysis: &types.TripleTheoryAnalysis{
			RuleConsequentialism:     "rc",
			KantianContractualism:    "kc",
			ScanlonianContractualism: "sc",
			Synthesis:                "syn",
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
