// Package cmd provides the CLI commands for kioku.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kioku-dev/kioku/internal/config"
	"github.com/kioku-dev/kioku/internal/logging"
	"github.com/kioku-dev/kioku/pkg/version"
)

var (
	corpusDir string
	debugMode bool
)

// NewRootCmd creates the root command for the kioku CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kioku",
		Short:   "Local-first hybrid retrieval over a change-log or JSONL corpus",
		Version: version.Version,
		Long: `kioku builds and queries a hybrid BM25 + semantic index over a
change-log or line-delimited JSON corpus, fusing both legs with
Reciprocal Rank Fusion.`,
	}
	cmd.SetVersionTemplate("kioku version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&corpusDir, "dir", "C", ".", "corpus/project root directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.kioku/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRunE = teardownLogging

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

var loggingCleanup func()

func setupLogging(*cobra.Command, []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(*cobra.Command, []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig applies the full precedence chain rooted at corpusDir.
func loadConfig() (*config.Config, error) {
	return config.Load(corpusDir)
}

// indexDir resolves the configured index directory relative to corpusDir.
func indexDir(cfg *config.Config) string {
	dir := cfg.Index.Dir
	if dir == "" {
		dir = ".kioku/index"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(corpusDir, dir)
}

func apiKeyFromEnv(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
