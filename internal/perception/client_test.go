package perception

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mattr/internal/types"
)

// recordingBackend returns a canned reply and records every request.
type recordingBackend struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []Request
}

func (r *recordingBackend) Generate(ctx context.Context, req Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.reply, r.err
}

func (r *recordingBackend) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

const validReply = `{
  "shortAnswer": "Yes, with caveats.",
  "needsClarification": false,
  "analysis": {
    "ruleConsequentialism": "rc",
    "kantianContractualism": "kc",
    "scanlonianContractualism": "sc",
    "synthesis": "syn"
  }
}`

func TestConverse_Success(t *testing.T) {
	backend := &recordingBackend{reply: validReply}
	c := NewClient(backend, WithLogger(zaptest.NewLogger(t)))

	history := []types.HistoryItem{
		{Role: types.HistoryRoleModel, Parts: []types.Part{{Text: "greeting"}}},
	}
	got, err := c.Converse(context.Background(), history, "Should I buy a diesel car?")
	require.NoError(t, err)

	assert.Equal(t, "Yes, with caveats.", got.ShortAnswer)
	assert.False(t, got.NeedsClarification)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "syn", got.Analysis.Synthesis)
	assert.True(t, got.Actionable())

	require.Equal(t, 1, backend.calls(), "exactly one backend call per exchange")
	req := backend.requests[0]
	assert.Equal(t, SystemInstruction, req.SystemInstruction)
	assert.Equal(t, "Should I buy a diesel car?", req.Message)
	assert.Equal(t, history, req.History)
	require.NotNil(t, req.Schema)
	assert.Equal(t, []string{"shortAnswer", "needsClarification"}, req.Schema.Required)
}

func TestConverse_Clarification(t *testing.T) {
	backend := &recordingBackend{reply: `{"shortAnswer":"It depends.","needsClarification":true,"clarificationQuestion":"Do what?"}`}
	c := NewClient(backend)

	got, err := c.Converse(context.Background(), nil, "Should I do it?")
	require.NoError(t, err)
	assert.True(t, got.NeedsClarification)
	assert.Equal(t, "Do what?", got.ClarificationQuestion)
	assert.Nil(t, got.Analysis)
	assert.False(t, got.Actionable())
	assert.False(t, c.IsFallback(got))
}

func TestConverse_MalformedReplyFallsBack(t *testing.T) {
	cases := map[string]string{
		"not json":           "I think you should not.",
		"truncated":          `{"shortAnswer": "Yes"`,
		"missing required":   `{"shortAnswer": "Yes"}`,
		"wrong type":         `{"shortAnswer": 42, "needsClarification": false}`,
		"array instead":      `[1,2,3]`,
		"fence around prose": "```\nnot json\n```",
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewClient(&recordingBackend{reply: reply}, WithLogger(zaptest.NewLogger(t)))

			got, err := c.Converse(context.Background(), nil, "q")
			require.NoError(t, err, "malformed replies are recovered, not propagated")
			assert.Equal(t, FallbackResult(), got)
			assert.True(t, c.IsFallback(got))
		})
	}
}

func TestFallbackResultValues(t *testing.T) {
	f := FallbackResult()
	assert.Equal(t, "I encountered an error analyzing your request.", f.ShortAnswer)
	assert.False(t, f.NeedsClarification)
	assert.Equal(t, &types.TripleTheoryAnalysis{
		RuleConsequentialism:     "Error",
		KantianContractualism:    "Error",
		ScanlonianContractualism: "Error",
		Synthesis:                "Please try again.",
	}, f.Analysis)

	// Each call returns an independent value.
	f.Analysis.Synthesis = "mutated"
	assert.Equal(t, "Please try again.", FallbackResult().Analysis.Synthesis)
}

func TestConverse_FencedReply(t *testing.T) {
	c := NewClient(&recordingBackend{reply: "```json\n" + validReply + "\n```"})

	got, err := c.Converse(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.Equal(t, "Yes, with caveats.", got.ShortAnswer)
	assert.False(t, c.IsFallback(got))
}

func TestConverse_EmptyReply(t *testing.T) {
	c := NewClient(&recordingBackend{reply: ""})
	got, err := c.Converse(context.Background(), nil, "q")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestConverse_WhitespaceReplyFallsBack(t *testing.T) {
	c := NewClient(&recordingBackend{reply: "  \n\t"})
	got, err := c.Converse(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.True(t, c.IsFallback(got))
}

func TestConverse_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClient(&recordingBackend{err: boom})

	got, err := c.Converse(context.Background(), nil, "q")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
}

func TestConverse_Timeout(t *testing.T) {
	backend := BackendFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := NewClient(backend, WithTimeout(10*time.Millisecond))

	_, err := c.Converse(context.Background(), nil, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConverse_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := BackendFunc(func(ctx context.Context, req Request) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := NewClient(backend).Converse(ctx, nil, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStripMarkdownCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}```  ", `{"a":1}`},
		{"```", "```"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMarkdownCodeFences(tt.in), "input %q", tt.in)
	}
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()
	assert.ElementsMatch(t, []string{"shortAnswer", "needsClarification"}, s.Required)

	analysis, ok := s.Properties["analysis"]
	require.True(t, ok)
	assert.ElementsMatch(t,
		[]string{"ruleConsequentialism", "kantianContractualism", "scanlonianContractualism", "synthesis"},
		analysis.Required,
	)
	assert.Contains(t, s.Properties, "clarificationQuestion")
	assert.NotContains(t, s.Required, "clarificationQuestion")
}
