package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"mattr/internal/logging"
	"mattr/internal/types"
)

var (
	// ErrEmptyResponse is returned when the engine replies with no text.
	ErrEmptyResponse = errors.New("empty response from reasoning engine")
	// ErrMissingAPIKey is returned by the Gemini backend when no key is configured.
	ErrMissingAPIKey = errors.New("API key not configured")
)

// Request is one call to the reasoning engine.
type Request struct {
	SystemInstruction string
	Schema            *genai.Schema
	History           []types.HistoryItem
	Message           string
}

// Backend sends a Request to a hosted model and returns the raw reply text.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Client is the Reasoning Client: it frames the conversation for the backend
// and decodes the reply into an AnalysisResult.
type Client struct {
	backend Backend
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for parse warnings and call timings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds every Converse call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client over backend.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		logger:  logging.Get(logging.CategoryPerception),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Converse sends history plus message to the engine exactly once.
//
// Transport failures, empty replies and context errors are returned wrapped.
// A reply that is not a decodable AnalysisResult yields FallbackResult and a
// nil error.
func (c *Client) Converse(ctx context.Context, history []types.HistoryItem, message string) (*types.AnalysisResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{
		SystemInstruction: SystemInstruction,
		Schema:            ResponseSchema(),
		History:           history,
		Message:           message,
	}

	start := time.Now()
	c.logger.Debug("converse", zap.Int("history", len(history)), zap.Int("message_len", len(message)))

	text, err := c.backend.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("backend call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, fmt.Errorf("generate: %w", err)
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}

	result, err := ParseReply(text)
	if err != nil {
		c.logger.Warn("unparseable reply, using fallback",
			zap.Error(err),
			zap.String("raw", text),
		)
		return FallbackResult(), nil
	}

	c.logger.Debug("converse complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("needs_clarification", result.NeedsClarification),
		zap.Bool("has_analysis", result.Analysis != nil),
	)
	return result, nil
}

// IsFallback reports whether r is the degraded result produced for an
// unparseable reply.
func (c *Client) IsFallback(r *types.AnalysisResult) bool {
	return IsFallback(r)
}

// ParseReply decodes the engine's reply text. The text may be wrapped in a
// markdown code fence. shortAnswer and needsClarification must be present.
func ParseReply(text string) (*types.AnalysisResult, error) {
	body := stripMarkdownCodeFences(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	for _, key := range []string{"shortAnswer", "needsClarification"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("decode reply: missing %q", key)
		}
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &result, nil
}
