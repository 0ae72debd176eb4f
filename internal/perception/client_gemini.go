package perception

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"mattr/internal/logging"
	"mattr/internal/types"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-3-pro-preview"

// DefaultThinkingBudget is the thinking token budget sent with every request.
const DefaultThinkingBudget = 2048

// GeminiConfig configures GeminiBackend.
type GeminiConfig struct {
	APIKey         string
	Model          string
	BaseURL        string // optional endpoint override
	ThinkingBudget int    // 0 falls back to DefaultThinkingBudget
	HTTPClient     *http.Client
}

// GeminiBackend implements Backend on google.golang.org/genai.
type GeminiBackend struct {
	cfg    GeminiConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiBackend creates a Gemini backend. An empty API key does not fail
// construction; every Generate call returns ErrMissingAPIKey instead.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.ThinkingBudget <= 0 {
		cfg.ThinkingBudget = DefaultThinkingBudget
	}

	b := &GeminiBackend{
		cfg:    cfg,
		logger: logging.Get(logging.CategoryAPI),
	}
	if cfg.APIKey == "" {
		b.logger.Warn("gemini backend created without API key")
		return b, nil
	}
	if _, err := b.genaiClient(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Model returns the model name requests are sent to.
func (b *GeminiBackend) Model() string { return b.cfg.Model }

func (b *GeminiBackend) genaiClient(ctx context.Context) (*genai.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}
	if b.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:     b.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.cfg.HTTPClient,
	}
	if b.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	b.client = client
	return client, nil
}

// Generate sends the request with JSON output, the response schema and the
// thinking budget, and returns the non-thought text of the first candidate.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	client, err := b.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	budget := int32(b.cfg.ThinkingBudget)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
		ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}

	b.logger.Debug("generate content",
		zap.String("model", b.cfg.Model),
		zap.Int("contents", len(req.History)+1),
	)

	resp, err := client.Models.GenerateContent(ctx, b.cfg.Model, buildContents(req.History, req.Message), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return replyText(resp), nil
}

// buildContents projects history into genai contents and appends message as
// the final user turn.
func buildContents(history []types.HistoryItem, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, item := range history {
		parts := make([]*genai.Part, 0, len(item.Parts))
		for _, p := range item.Parts {
			parts = append(parts, &genai.Part{Text: p.Text})
		}
		role := item.Role
		if role != types.HistoryRoleModel {
			role = types.HistoryRoleUser
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return append(contents, &genai.Content{
		Role:  types.HistoryRoleUser,
		Parts: []*genai.Part{{Text: message}},
	})
}

// replyText concatenates the non-thought text parts of the first candidate.
func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
