// Package main provides the reqcheck binary entry point.
// reqcheck generates procurement requirements checklists with a team of
// LLM agents and answers them against tender documents.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/reqcheck/internal/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "reqcheck"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags and what PersistentPreRunE derives from them.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	logger *slog.Logger
	cfg    *config.Config
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Procurement requirements checklist generator and document analyzer",
		Long: `reqcheck builds a requirements checklist for procurement documentation
with a team of LLM agents (a methodologist, one expert per aspect and a
compiler), then answers every checklist question against a tender document
and renders the answers as a markdown report.

Configuration is read from ~/.config/reqcheck/config.yaml, reqcheck.yaml in
the working directory or its parents, the --config file and the environment
(OPENAI_API_KEY, OPENAI_BASE_URL, SERPER_API_KEY, REQCHECK_LOCALE).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			g.logger = logger
			slog.SetDefault(logger)

			cfg, err := config.NewLoader(logger).Load(g.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			g.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "C", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		generateCmd(g),
		analyzeCmd(g),
		checklistCmd(g),
		serveCmd(g),
		watchCmd(g),
		indexCmd(g),
		configCmd(g),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs neither config nor logging
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text|json)", format)
	}
}
