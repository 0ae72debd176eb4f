package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mattr/internal/config"
	"mattr/internal/perception"
	"mattr/internal/session"
)

// newReasoner builds the Gemini-backed reasoning client. Tests replace it.
var newReasoner = func(ctx context.Context, c *config.Config) (session.Reasoner, error) {
	backend, err := perception.NewGeminiBackend(ctx, perception.GeminiConfig{
		APIKey:         c.LLM.APIKey,
		Model:          c.LLM.Model,
		BaseURL:        c.LLM.BaseURL,
		ThinkingBudget: c.LLM.ThinkingBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini backend: %w", err)
	}
	return perception.NewClient(
		perception.NewTracingBackend(backend, backend.Model()),
		perception.WithTimeout(c.GetLLMTimeout()),
	), nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil {
		if ctx := cmd.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// loadedConfig returns the resolved config, falling back to defaults when
// setup did not run.
func loadedConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}
