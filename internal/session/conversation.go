// Package session owns the conversation: the ordered turn log, the single
// in-flight exchange gate and the projection of turns into engine history.
//
// Every presentation surface drives the same *Conversation. The mutex guards
// turns and the pending flag; the reasoner call always runs outside the lock.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mattr/internal/logging"
	"mattr/internal/types"
)

// Reasoner answers one question against the prior history.
type Reasoner interface {
	Converse(ctx context.Context, history []types.HistoryItem, message string) (*types.AnalysisResult, error)
}

// fallbackDetector is implemented by reasoners that can tell a degraded
// result apart from a real one.
type fallbackDetector interface {
	IsFallback(*types.AnalysisResult) bool
}

var (
	// ErrEmptyInput rejects blank submissions.
	ErrEmptyInput = errors.New("empty input")
	// ErrPending rejects submissions while an exchange is in flight.
	ErrPending = errors.New("exchange pending")
)

// Conversation is the process-level session state.
type Conversation struct {
	mu        sync.Mutex
	id        string
	turns     []Turn
	pending   bool
	version   uint64
	observers map[int]func(Snapshot)
	nextObsID int

	// notifyMu serializes observer delivery in mutation order.
	notifyMu sync.Mutex

	reasoner Reasoner
	logger   *zap.Logger
	audit    *logging.AuditLogger
	now      func() time.Time
	newID    func() string
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conversation) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// WithIDGenerator overrides turn id generation.
func WithIDGenerator(gen func() string) Option {
	return func(c *Conversation) { c.newID = gen }
}

// New creates a conversation holding only the greeting turn.
func New(reasoner Reasoner, opts ...Option) *Conversation {
	c := &Conversation{
		id:        uuid.NewString(),
		reasoner:  reasoner,
		observers: make(map[int]func(Snapshot)),
		logger:    logging.Get(logging.CategorySession),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.audit = logging.AuditWithSession(c.id)

	c.turns = []Turn{{
		ID:        GreetingID,
		Seq:       0,
		Role:      types.RoleAssistant,
		Content:   Greeting,
		CreatedAt: c.now(),
	}}

	c.audit.SessionStart()
	c.logger.Info("conversation started", zap.String("session", c.id))
	return c
}

// ID returns the session id.
func (c *Conversation) ID() string { return c.id }

// Submit admits text as the next user turn. It returns ErrEmptyInput or
// ErrPending without mutating anything when the text cannot be admitted.
func (c *Conversation) Submit(text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		c.audit.ExchangeRejected("empty")
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		c.audit.ExchangeRejected("pending")
		c.logger.Debug("submission rejected while pending")
		return nil, ErrPending
	}

	history := ProjectHistory(c.turns)
	turn := c.appendLocked(types.RoleUser, text, nil)
	c.pending = true

	ex := &Exchange{
		conv:     c,
		userTurn: turn,
		history:  history,
		message:  text,
		started:  c.now(),
	}
	c.audit.ExchangeStart(turn.ID, len(history), len(text))
	c.publishAndUnlock()
	return ex, nil
}

// Begin is Submit reporting admission as a bool.
func (c *Conversation) Begin(text string) (*Exchange, bool) {
	ex, err := c.Submit(text)
	return ex, err == nil
}

// AppendUserTurn admits text and blocks until the exchange ends. It returns
// the assistant turn, or false if the text was rejected.
func (c *Conversation) AppendUserTurn(ctx context.Context, text string) (Turn, bool) {
	ex, ok := c.Begin(text)
	if !ok {
		return Turn{}, false
	}
	return ex.Resolve(ctx), true
}

// BeginSkip admits the fixed skip-clarification message.
func (c *Conversation) BeginSkip() (*Exchange, bool) {
	return c.Begin(SkipClarificationText)
}

// SkipClarification sends the fixed skip-clarification message and blocks
// until the exchange ends.
func (c *Conversation) SkipClarification(ctx context.Context) (Turn, bool) {
	return c.AppendUserTurn(ctx, SkipClarificationText)
}

// ToggleExpand flips Expanded on the turn with the given id. Unknown ids are
// ignored and report false.
func (c *Conversation) ToggleExpand(id string) bool {
	c.mu.Lock()
	for i := range c.turns {
		if c.turns[i].ID == id {
			c.turns[i].Expanded = !c.turns[i].Expanded
			c.publishAndUnlock()
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Snapshot returns a deep copy of the turns and the pending flag.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of turns, greeting included.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Pending reports whether an exchange is in flight.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Turn returns a copy of the turn with the given id.
func (c *Conversation) Turn(id string) (Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.turns {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return Turn{}, false
}

// LastClarification returns the latest assistant turn if it asks for
// clarification.
func (c *Conversation) LastClarification() (Turn, bool) {
	return c.Snapshot().LastClarification()
}

// Observe registers fn to receive a snapshot after every mutation. Calls are
// delivered in mutation order from the mutating goroutine; fn must not mutate
// the conversation synchronously. The returned func unregisters fn.
func (c *Conversation) Observe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// Close records the end of the session.
func (c *Conversation) Close() {
	n := c.Len()
	c.audit.SessionEnd(n)
	c.logger.Info("conversation ended", zap.String("session", c.id), zap.Int("turns", n))
}

// appendLocked appends a new turn and returns a copy of it.
func (c *Conversation) appendLocked(role types.Role, content string, data *types.AnalysisResult) Turn {
	t := Turn{
		ID:        c.newID(),
		Seq:       len(c.turns),
		Role:      role,
		Content:   content,
		Data:      data,
		CreatedAt: c.now(),
	}
	c.turns = append(c.turns, t)
	return t.clone()
}

func (c *Conversation) snapshotLocked() Snapshot {
	turns := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		turns[i] = t.clone()
	}
	return Snapshot{
		ID:      c.id,
		Version: c.version,
		Turns:   turns,
		Pending: c.pending,
	}
}

// publishAndUnlock bumps the version, releases c.mu and delivers a fresh
// snapshot to every observer. The caller must hold c.mu.
func (c *Conversation) publishAndUnlock() {
	c.version++
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}

	type delivery struct {
		fn   func(Snapshot)
		snap Snapshot
	}
	deliveries := make([]delivery, 0, len(c.observers))
	for _, fn := range c.observers {
		deliveries = append(deliveries, delivery{fn: fn, snap: c.snapshotLocked()})
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, d := range deliveries {
		d.fn(d.snap)
	}
}
