// Package logging provides config-driven categorized logging for mattr.
// Every category writes through one zap core to <dir>/<date>_mattr.log.
// Logging is controlled by debug_mode: when false, every logger is a no-op so
// nothing ever reaches the terminal the chat UI is drawing on.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Boot/initialization
	CategoryAPI        Category = "api"        // Gemini API calls
	CategoryPerception Category = "perception" // Prompt building and reply parsing
	CategorySession    Category = "session"    // Conversation state, exchanges
	CategoryUI         Category = "ui"         // Terminal chat
	CategoryServer     Category = "server"     // HTTP and websocket surface
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Format     string          // json or console
	Dir        string          // directory for log files
	Categories map[string]bool // optional per-category filter
}

var (
	mu      sync.RWMutex
	current Config
	base    = zap.NewNop()
	logFile *os.File
	logPath string
	loggers = make(map[Category]*zap.Logger)
)

// Initialize sets up the log file and the shared zap core.
// Calling it again replaces the previous configuration.
func Initialize(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	current = cfg
	loggers = make(map[Category]*zap.Logger)

	if !cfg.DebugMode {
		return nil // Silent no-op in production mode
	}
	if cfg.Dir == "" {
		return fmt.Errorf("logs directory required")
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	enc, err := newEncoder(cfg.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_mattr.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logPath = path
	base = zap.New(zapcore.NewCore(enc, zapcore.Lock(f), level), zap.AddCaller())

	base.Named(string(CategoryBoot)).Info("logging initialized",
		zap.String("path", path),
		zap.String("level", level.String()),
		zap.Int("category_filters", len(cfg.Categories)),
	)
	return nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "", "json":
		return zapcore.NewJSONEncoder(encCfg), nil
	case "console", "text":
		return zapcore.NewConsoleEncoder(encCfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// IsDebugMode returns whether logging is enabled at all.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return current.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabledLocked(category)
}

func enabledLocked(category Category) bool {
	if !current.DebugMode {
		return false
	}
	if current.Categories == nil {
		return true
	}
	enabled, ok := current.Categories[string(category)]
	return !ok || enabled
}

// Get returns the logger for a category, or a no-op logger when the category
// is disabled. Loggers obtained before Initialize are no-ops.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l := zap.NewNop()
	if enabledLocked(category) {
		l = base.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Path returns the active log file, or "" when logging is disabled.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
	if auditBase != nil {
		_ = auditBase.Sync()
	}
}

// CloseAll flushes and closes every log file and resets to no-op loggers.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	current = Config{}
	loggers = make(map[Category]*zap.Logger)
}

func closeLocked() {
	_ = base.Sync()
	base = zap.NewNop()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logPath = ""
	closeAuditLocked()
}
