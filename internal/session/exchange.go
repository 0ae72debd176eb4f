package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"mattr/internal/types"
)

// Outcome is the terminal state of an exchange.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeFulfilled
	OutcomeFallback
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFulfilled:
		return "fulfilled"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

var errNoResult = errors.New("reasoner returned no result")

// Exchange is one admitted user turn awaiting its assistant reply.
type Exchange struct {
	conv     *Conversation
	userTurn Turn
	history  []types.HistoryItem
	message  string
	started  time.Time

	once    sync.Once
	mu      sync.Mutex
	reply   Turn
	outcome Outcome
	err     error
}

// UserTurn returns the admitted user turn.
func (e *Exchange) UserTurn() Turn { return e.userTurn.clone() }

// History returns the history sent to the reasoner: every turn that existed
// before the user turn was appended.
func (e *Exchange) History() []types.HistoryItem { return e.history }

// Resolve calls the reasoner once and appends the assistant turn. Errors are
// recovered into the apology turn. Pending is always cleared. Later calls
// return the already appended turn without calling the reasoner.
func (e *Exchange) Resolve(ctx context.Context) Turn {
	e.once.Do(func() {
		result, err := e.conv.reasoner.Converse(ctx, e.history, e.message)
		if err == nil && result == nil {
			err = errNoResult
		}
		e.finish(result, err)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reply.clone()
}

// Outcome reports the terminal state, or OutcomePending before Resolve returns.
func (e *Exchange) Outcome() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Err returns the recovered reasoner error, if any.
func (e *Exchange) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Exchange) finish(result *types.AnalysisResult, err error) {
	c := e.conv

	outcome := OutcomeFulfilled
	content := ""
	var data *types.AnalysisResult
	if err != nil {
		outcome = OutcomeFailed
		content = ApologyText
		c.logger.Error("exchange failed",
			zap.String("turn", e.userTurn.ID),
			zap.Duration("elapsed", c.now().Sub(e.started)),
			zap.Error(err),
		)
	} else {
		if fd, ok := c.reasoner.(fallbackDetector); ok && fd.IsFallback(result) {
			outcome = OutcomeFallback
		}
		content = result.ShortAnswer
		data = result.Clone()
	}

	c.mu.Lock()
	reply := c.appendLocked(types.RoleAssistant, content, data)
	c.pending = false

	e.mu.Lock()
	e.reply = reply
	e.outcome = outcome
	e.err = err
	e.mu.Unlock()

	c.audit.ExchangeEnd(e.userTurn.ID, outcome.String(), c.now().Sub(e.started), err)
	c.logger.Debug("exchange complete",
		zap.String("turn", reply.ID),
		zap.Stringer("outcome", outcome),
	)
	c.publishAndUnlock()
}
