package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/kitesession/internal/pkg/logger"
	"github.com/devilmonastery/kitesession/internal/pkg/metrics"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config *Config
	Logger *slog.Logger
}

// Global logging flags
var (
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:   "kitesession",
		Short: "Obtain and manage Kite Connect sessions",
		Long: `kitesession keeps a valid Kite Connect access token on disk.

The cached token is reused while Kite accepts it. Otherwise a headless
browser logs in with the configured credentials and second factor, and
the request token from the redirect is exchanged for a new session.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Logger = logger.WithCommand(slog.Default().With("component", "cli"), cmd.CommandPath())
			ctx.Logger.Debug("CLI started", "command", cmd.Name())

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx.Config = config

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics(&ctx)
		},
	}

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newHoldingsCommand())
	rootCmd.AddCommand(newConfigCommand())

	rootCmd.PersistentFlags().StringVar(&configPathOverride, "config", "",
		"Config file path (default ~/.kitesession)")

	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	return rootCmd
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// writeMetrics dumps the run's metrics when the current context asks for it
func writeMetrics(cc *CliContext) error {
	if cc.Config == nil {
		return nil
	}
	current, err := cc.Config.GetCurrentContext()
	if err != nil {
		return nil
	}
	path := current.MetricsPath()
	if path == "" {
		return nil
	}
	if err := metrics.WriteTextfile(path); err != nil {
		cc.Logger.Warn("failed to write metrics", "path", path, "error", err)
		return nil
	}
	cc.Logger.Debug("wrote metrics", "path", path)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
