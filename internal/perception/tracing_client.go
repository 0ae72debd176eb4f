package perception

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mattr/internal/logging"
)

// TracingBackend wraps any Backend and records every call in the api log and
// the audit log.
type TracingBackend struct {
	underlying Backend
	model      string
	logger     *zap.Logger
	audit      *logging.AuditLogger
}

// NewTracingBackend creates a tracing wrapper around an existing backend.
func NewTracingBackend(underlying Backend, model string) *TracingBackend {
	return &TracingBackend{
		underlying: underlying,
		model:      model,
		logger:     logging.Get(logging.CategoryAPI),
		audit:      logging.Audit(),
	}
}

// Generate forwards to the wrapped backend.
func (t *TracingBackend) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := t.underlying.Generate(ctx, req)
	elapsed := time.Since(start)

	t.audit.LLMCall(t.model, elapsed, len(text), err)
	if err != nil {
		t.logger.Error("llm call failed",
			zap.String("model", t.model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", err
	}
	t.logger.Info("llm call complete",
		zap.String("model", t.model),
		zap.Duration("elapsed", elapsed),
		zap.Int("history", len(req.History)),
		zap.Int("reply_len", len(text)),
	)
	return text, nil
}
