package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mattr configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Terminal presentation
	UI UIConfig `yaml:"ui"`

	// Local HTTP surface
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning engine.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // gemini
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url,omitempty"`
	Timeout        string `yaml:"timeout"` // per-exchange deadline, 0 = none
	ThinkingBudget int    `yaml:"thinking_budget"`
}

// UIConfig configures the terminal chat.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, or empty for auto-detect
}

// ServerConfig configures `mattr serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // json, console
	Dir        string          `yaml:"dir"`                  // empty = <user config dir>/mattr/logs
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

const (
	DefaultModel          = "gemini-3-pro-preview"
	DefaultThinkingBudget = 2048
	DefaultAddr           = "127.0.0.1:8787"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          DefaultModel,
			Timeout:        "0s",
			ThinkingBudget: DefaultThinkingBudget,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key from environment (check in priority order, last wins)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if model := os.Getenv("MATTR_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if timeout := os.Getenv("MATTR_TIMEOUT"); timeout != "" {
		c.LLM.Timeout = timeout
	}
	if addr := os.Getenv("MATTR_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if debug := os.Getenv("MATTR_DEBUG"); debug != "" {
		if on, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// GetLLMTimeout returns the per-exchange timeout. Zero means no deadline.
func (c *Config) GetLLMTimeout() time.Duration {
	if c.LLM.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetLogsDir returns the configured logs directory, falling back to
// <user config dir>/mattr/logs.
func (c *Config) GetLogsDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(configRoot(), "logs")
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini"}

// Validate validates the configuration. A missing API key is not an error;
// see Warnings.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}
	if c.LLM.ThinkingBudget < 0 {
		return fmt.Errorf("invalid thinking budget: %d", c.LLM.ThinkingBudget)
	}
	if c.LLM.Timeout != "" {
		d, err := time.ParseDuration(c.LLM.Timeout)
		if err != nil {
			return fmt.Errorf("invalid LLM timeout %q: %w", c.LLM.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid LLM timeout %q: must not be negative", c.LLM.Timeout)
		}
	}

	switch c.UI.Theme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("invalid ui theme: %s (valid: light, dark)", c.UI.Theme)
	}

	return nil
}

// Warnings returns non-fatal configuration problems worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.LLM.APIKey == "" {
		warnings = append(warnings, "API key not configured (set API_KEY or GEMINI_API_KEY); requests will fail until one is provided")
	}
	return warnings
}

// DefaultConfigPath returns <user config dir>/mattr/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configRoot(), "config.yaml")
}

func configRoot() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".mattr"
	}
	return filepath.Join(dir, "mattr")
}
