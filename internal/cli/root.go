// Package cli implements the command-line interface for vbs.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kilupskalvis/vbs/internal/app"
	"github.com/kilupskalvis/vbs/internal/config"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	History *history.Store
	Logger  *slog.Logger
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.History != nil {
		c.History.Close()
	}
}

// initContext loads the project configuration (no stores)
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}
	return &cmdContext{Config: cfg, Logger: newLogger()}
}

// initHistoryContext loads the configuration and opens the submission log
func initHistoryContext() *cmdContext {
	c := initContext()

	st, err := history.New(c.Config.HistoryPath())
	if err != nil {
		exitError("failed to open submission history: %v", err)
	}
	c.History = st
	return c
}

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "vbs",
	Short: "Video keyframe retrieval gateway",
	Long: `vbs sits between a keyframe retrieval UI, a search backend and the
competition evaluation server. It selects related frames around a keyframe,
keeps per-task submission boards and sends answers for evaluation.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOrDefault("VBS_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", envOrDefault("VBS_LOG_FORMAT", "text"), "Log format (json|text)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
}

func newLogger() *slog.Logger {
	return app.NewLogger(logLevel, logFormat, os.Stderr)
}

// envOrDefault returns the value of the environment variable key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
