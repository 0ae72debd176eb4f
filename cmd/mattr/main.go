package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mattr/cmd/mattr/chat"
	"mattr/cmd/mattr/ui"
	"mattr/internal/config"
	"mattr/internal/logging"
	"mattr/internal/session"
)

var (
	// Global flags
	configPath string
	verbose    bool
	modelName  string
	timeout    time.Duration

	// Resolved configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mattr",
	Short: "Mattr - an ethical assistant built on Parfit's Triple Theory",
	Long: `Mattr answers moral questions through three ethical lenses:
Rule Consequentialism, Kantian Contractualism and Scanlonian Contractualism,
followed by a synthesis.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runInteractiveChat,
}

func init() {
	// Assigned here: setup refers back to rootCmd.
	rootCmd.PersistentPreRunE = setup

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <user config dir>/mattr/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Gemini model (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-exchange timeout, 0 waits indefinitely (overrides config)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env and the config file, applies flag overrides and starts
// logging. The interactive chat never logs to the terminal.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(logging.Config{
		DebugMode:  c.Logging.DebugMode,
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Dir:        c.GetLogsDir(),
		Categories: c.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logging.InitAudit(); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	if cmd == rootCmd {
		logger = logging.Get(logging.CategoryBoot)
	} else {
		logger, err = newCLILogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	boot := logging.Get(logging.CategoryBoot)
	for _, w := range c.Warnings() {
		logger.Warn(w)
		if logger != boot {
			boot.Warn(w)
		}
		if cmd == rootCmd {
			// The chat logs to files only, and not at all without debug mode
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
	}
	boot.Info("configuration loaded",
		zap.String("path", path),
		zap.String("model", c.LLM.Model),
		zap.Duration("timeout", c.GetLLMTimeout()),
	)

	cfg = c
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	if modelName != "" {
		c.LLM.Model = modelName
	}
	if f := cmd.Flag("timeout"); f != nil && f.Changed {
		c.LLM.Timeout = timeout.String()
	}
	if verbose {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// newCLILogger builds the stderr logger used by non-interactive commands.
func newCLILogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// runInteractiveChat launches the terminal chat.
func runInteractiveChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	conv, err := newConversation(ctx)
	if err != nil {
		return err
	}
	defer conv.Close()

	m := chat.New(ctx, conv, chat.Config{
		Theme:  ui.ThemeByName(loadedConfig().UI.Theme),
		Logger: logging.Get(logging.CategoryUI),
		Notice: strings.Join(loadedConfig().Warnings(), "; "),
	})
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err = p.Run()
	return err
}

// newConversation builds the reasoner from cfg and wraps it in a conversation.
func newConversation(ctx context.Context) (*session.Conversation, error) {
	reasoner, err := newReasoner(ctx, loadedConfig())
	if err != nil {
		return nil, err
	}
	return session.New(reasoner), nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
