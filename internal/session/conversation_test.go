package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mattr/internal/types"
)

func newTestConversation(t *testing.T, r Reasoner) *Conversation {
	t.Helper()
	var n int
	return New(r,
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("t%d", n) }),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
}

var ignoreTime = cmpopts.IgnoreFields(Turn{}, "CreatedAt")

func TestNew_Greeting(t *testing.T) {
	c := newTestConversation(t, &fakeReasoner{})

	snap := c.Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, GreetingID, snap.Turns[0].ID)
	assert.Equal(t, types.RoleAssistant, snap.Turns[0].Role)
	assert.Equal(t, Greeting, snap.Turns[0].Content)
	assert.Nil(t, snap.Turns[0].Data)
	assert.False(t, snap.Pending)
	assert.NotEmpty(t, c.ID())
}

func TestAppendUserTurn_LengthAndOrder(t *testing.T) {
	const n = 5
	r := &fakeReasoner{}
	for i := 0; i < n; i++ {
		r.results = append(r.results, answer(fmt.Sprintf("answer %d", i)))
	}
	c := newTestConversation(t, r)

	for i := 0; i < n; i++ {
		reply, ok := c.AppendUserTurn(context.Background(), fmt.Sprintf("question %d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("answer %d", i), reply.Content)
		assert.Equal(t, 1+2*(i+1), c.Len())
	}

	snap := c.Snapshot()
	for i, turn := range snap.Turns {
		assert.Equal(t, i, turn.Seq, "strict insertion order")
		if i == 0 {
			continue
		}
		wantRole := types.RoleUser
		if i%2 == 0 {
			wantRole = types.RoleAssistant
		}
		assert.Equal(t, wantRole, turn.Role, "turn %d", i)
	}
	assert.Equal(t, n, r.callCount(), "exactly one reasoner call per exchange")
}

func TestAppendUserTurn_EmptyInputNeverMutates(t *testing.T) {
	r := &fakeReasoner{}
	c := newTestConversation(t, r)
	before := c.Snapshot()

	for _, in := range []string{"", " ", "\t\n  ", " "} {
		_, ok := c.AppendUserTurn(context.Background(), in)
		assert.False(t, ok, "input %q", in)
	}

	_, err := c.Submit("   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Errorf("conversation mutated (-before +after):\n%s", diff)
	}
	assert.Zero(t, r.callCount())
}

func TestBegin_RejectedWhilePending(t *testing.T) {
	r := &fakeReasoner{
		results: []*types.AnalysisResult{answer("first")},
		gate:    make(chan struct{}),
	}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("first question")
	require.True(t, ok)
	require.True(t, c.Pending())

	during := c.Snapshot()
	_, ok = c.Begin("second question")
	assert.False(t, ok)
	_, err := c.Submit("third question")
	assert.ErrorIs(t, err, ErrPending)
	_, ok = c.BeginSkip()
	assert.False(t, ok)

	if diff := cmp.Diff(during, c.Snapshot()); diff != "" {
		t.Errorf("pending conversation mutated (-want +got):\n%s", diff)
	}

	done := make(chan Turn)
	go func() { done <- ex.Resolve(context.Background()) }()
	r.gate <- struct{}{}
	reply := <-done

	assert.Equal(t, "first", reply.Content)
	assert.False(t, c.Pending())
	assert.Equal(t, 3, c.Len())
}

func TestConcurrentSubmissionsAdmitOne(t *testing.T) {
	r := &fakeReasoner{gate: make(chan struct{})}
	r.results = []*types.AnalysisResult{answer("only")}
	c := newTestConversation(t, r)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []*Exchange
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ex, ok := c.Begin(fmt.Sprintf("q%d", i)); ok {
				mu.Lock()
				admitted = append(admitted, ex)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, admitted, 1)
	assert.Equal(t, 2, c.Len())

	go func() { r.gate <- struct{}{} }()
	admitted[0].Resolve(context.Background())
	assert.Equal(t, 3, c.Len())
}

func TestToggleExpand(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("Yes")}}
	c := newTestConversation(t, r)

	reply, ok := c.AppendUserTurn(context.Background(), "q")
	require.True(t, ok)
	assert.False(t, reply.Expanded, "assistant turns start collapsed")

	require.True(t, c.ToggleExpand(reply.ID))
	got, _ := c.Turn(reply.ID)
	assert.True(t, got.Expanded)

	require.True(t, c.ToggleExpand(reply.ID))
	got, _ = c.Turn(reply.ID)
	assert.False(t, got.Expanded, "two toggles restore the original value")

	before := c.Snapshot()
	assert.False(t, c.ToggleExpand("does-not-exist"))
	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Errorf("unknown id mutated conversation:\n%s", diff)
	}
}

func TestResolve_ErrorAppendsApology(t *testing.T) {
	r := &fakeReasoner{errs: []error{errors.New("401 unauthorized")}}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("Should I lie?")
	require.True(t, ok)
	reply := ex.Resolve(context.Background())

	assert.Equal(t, ApologyText, reply.Content)
	assert.Nil(t, reply.Data)
	assert.Equal(t, types.RoleAssistant, reply.Role)
	assert.Equal(t, OutcomeFailed, ex.Outcome())
	assert.EqualError(t, ex.Err(), "401 unauthorized")
	assert.False(t, c.Pending())
	assert.Equal(t, 3, c.Len(), "exactly one assistant turn")
}

func TestResolve_NilResultIsFailure(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{nil}}
	c := newTestConversation(t, r)

	reply, ok := c.AppendUserTurn(context.Background(), "q")
	require.True(t, ok)
	assert.Equal(t, ApologyText, reply.Content)
}

func TestResolve_Idempotent(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("once")}}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("q")
	require.True(t, ok)
	first := ex.Resolve(context.Background())
	second := ex.Resolve(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.callCount())
	assert.Equal(t, 3, c.Len())
}

func TestResolve_CancelledContext(t *testing.T) {
	r := &fakeReasoner{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("q")
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Turn)
	go func() { done <- ex.Resolve(ctx) }()
	<-r.started
	cancel()

	reply := <-done
	assert.Equal(t, ApologyText, reply.Content)
	assert.ErrorIs(t, ex.Err(), context.Canceled)
	assert.False(t, c.Pending())
}

func TestResolve_FallbackOutcome(t *testing.T) {
	fallback := answer("I encountered an error analyzing your request.")
	r := fallbackReasoner{
		fakeReasoner: &fakeReasoner{results: []*types.AnalysisResult{fallback}},
		fallback:     fallback,
	}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("q")
	require.True(t, ok)
	reply := ex.Resolve(context.Background())

	assert.Equal(t, OutcomeFallback, ex.Outcome())
	assert.Equal(t, fallback.ShortAnswer, reply.Content)
	assert.NotNil(t, reply.Data, "fallback keeps its data")
}

func TestScenario_DieselCar(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("Likely acceptable with caveats.")}}
	c := newTestConversation(t, r)

	ex, ok := c.Begin("Should I buy a diesel car?")
	require.True(t, ok)
	reply := ex.Resolve(context.Background())

	want := Turn{
		ID:      "t2",
		Seq:     2,
		Role:    types.RoleAssistant,
		Content: "Likely acceptable with caveats.",
		Data:    answer("Likely acceptable with caveats."),
	}
	if diff := cmp.Diff(want, reply, ignoreTime); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, reply.Actionable())
	assert.Equal(t, OutcomeFulfilled, ex.Outcome())

	// Greeting is replayed as text; the new question is not part of history.
	call := r.call(0)
	assert.Equal(t, "Should I buy a diesel car?", call.message)
	require.Len(t, call.history, 1)
	assert.Equal(t, types.HistoryRoleModel, call.history[0].Role)
	assert.Equal(t, Greeting, call.history[0].Text())
}

func TestScenario_ClarificationThenSkip(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{
		clarify("I need more context.", "What is 'it'?"),
		answer("Generally yes."),
	}}
	c := newTestConversation(t, r)

	reply, ok := c.AppendUserTurn(context.Background(), "Should I do it?")
	require.True(t, ok)
	assert.True(t, reply.NeedsClarification())
	assert.False(t, reply.Actionable())

	last, ok := c.LastClarification()
	require.True(t, ok)
	assert.Equal(t, "What is 'it'?", last.Data.ClarificationQuestion)

	reply, ok = c.SkipClarification(context.Background())
	require.True(t, ok)
	assert.Equal(t, "Generally yes.", reply.Content)

	snap := c.Snapshot()
	require.Len(t, snap.Turns, 5)
	assert.Equal(t, SkipClarificationText, snap.Turns[3].Content)
	assert.Equal(t, types.RoleUser, snap.Turns[3].Role)

	call := r.call(1)
	assert.Equal(t, SkipClarificationText, call.message)
	require.Len(t, call.history, 3)
	assert.True(t, strings.Contains(call.history[2].Text(), `"needsClarification":true`))

	_, ok = c.LastClarification()
	assert.False(t, ok, "latest assistant turn no longer asks")
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("Yes")}}
	c := newTestConversation(t, r)
	reply, _ := c.AppendUserTurn(context.Background(), "q")

	snap := c.Snapshot()
	snap.Turns[2].Data.ShortAnswer = "tampered"
	snap.Turns[2].Data.Analysis.Synthesis = "tampered"
	snap.Turns[0].Content = "tampered"

	got, _ := c.Turn(reply.ID)
	assert.Equal(t, "Yes", got.Data.ShortAnswer)
	assert.Equal(t, "syn", got.Data.Analysis.Synthesis)
	assert.Equal(t, Greeting, c.Snapshot().Turns[0].Content)
}

func TestAttachedResultIsNotShared(t *testing.T) {
	result := answer("Yes")
	r := &fakeReasoner{results: []*types.AnalysisResult{result}}
	c := newTestConversation(t, r)
	reply, _ := c.AppendUserTurn(context.Background(), "q")

	result.ShortAnswer = "changed by reasoner"
	got, _ := c.Turn(reply.ID)
	assert.Equal(t, "Yes", got.Data.ShortAnswer)
}

func TestObserve(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("Yes")}}
	c := newTestConversation(t, r)

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	cancel := c.Observe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	reply, _ := c.AppendUserTurn(context.Background(), "q")
	c.ToggleExpand(reply.ID)
	c.ToggleExpand("missing")

	mu.Lock()
	require.Len(t, snaps, 3, "user turn, assistant turn, toggle")
	assert.True(t, snaps[0].Pending)
	assert.Len(t, snaps[0].Turns, 2)
	assert.False(t, snaps[1].Pending)
	assert.Len(t, snaps[1].Turns, 3)
	assert.True(t, snaps[2].Turns[2].Expanded)
	assert.Less(t, snaps[0].Version, snaps[1].Version)
	assert.Less(t, snaps[1].Version, snaps[2].Version)
	mu.Unlock()

	cancel()
	cancel()
	c.ToggleExpand(reply.ID)

	mu.Lock()
	assert.Len(t, snaps, 3, "no delivery after cancel")
	mu.Unlock()
}

func TestSnapshotHelpers(t *testing.T) {
	r := &fakeReasoner{results: []*types.AnalysisResult{answer("Yes"), clarify("Hm.", "")}}
	c := newTestConversation(t, r)

	_, ok := c.Snapshot().LatestActionable()
	assert.False(t, ok)

	first, _ := c.AppendUserTurn(context.Background(), "q1")
	c.AppendUserTurn(context.Background(), "q2")

	snap := c.Snapshot()
	latest, ok := snap.LatestActionable()
	require.True(t, ok)
	assert.Equal(t, first.ID, latest.ID)
	assert.True(t, snap.Latest().NeedsClarification())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "fulfilled", OutcomeFulfilled.String())
	assert.Equal(t, "fallback", OutcomeFallback.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
