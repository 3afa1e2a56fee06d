// Package main provides the caseforge binary entry point.
// Caseforge generates and tracks QA test assets (test cases, Gherkin
// scenarios, bug reports) from user stories across isolated tenants.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	// Register scenario providers via init()
	_ "github.com/caseforge/caseforge/scenario/providers"

	"github.com/spf13/cobra"

	"github.com/caseforge/caseforge/config"
)

const (
	Version = "0.1.0"
	appName = "caseforge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "QA test-asset generation with tenant-isolated persistence",
		Long: `Caseforge turns user stories into QA test assets.

It generates Gherkin-style test scenarios through an external provider
(with deterministic fallback templates when the provider yields nothing),
distributes them across test cases, and persists the results under strict
tenant/workspace isolation with idempotent upserts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (overrides discovery)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	app := &appContext{configPath: &configPath, logLevel: &logLevel}

	cmd.AddCommand(
		generateCmd(app),
		workerCmd(app),
		taskCmd(app),
		importCmd(app),
		workspaceCmd(app),
		migrateCmd(app),
		versionCmd(),
	)
	return cmd
}

// appContext defers config loading until a subcommand actually runs, so
// flags registered on the root are resolved first.
type appContext struct {
	configPath *string
	logLevel   *string
}

// loadConfig resolves the layered configuration plus CLI overrides.
func (a *appContext) loadConfig() (*config.Config, *slog.Logger, error) {
	var cfg *config.Config
	var err error

	if *a.configPath != "" {
		cfg, err = config.LoadFromFile(*a.configPath)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(slog.Default()).Load()
	}
	if err != nil {
		return nil, nil, err
	}

	if *a.logLevel != "" {
		cfg.Log.Level = strings.ToLower(*a.logLevel)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the caseforge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, Version)
		},
	}
}
