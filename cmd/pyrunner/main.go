package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/config"
	"github.com/michaelbrown/pyrunner/internal/storage"
	"github.com/michaelbrown/pyrunner/internal/storage/sqlite"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pyrunner",
	Short: "pyrunner - Python code execution for MCP clients",
	Long: `pyrunner executes Python code on behalf of MCP clients.

It serves a run_python_code tool either in isolated mode, where every call
runs in a fresh interpreter, or in persistent mode, where variables, functions
and imports survive between calls until the environment is reset.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./pyrunner.yaml or $HOME/.pyrunner/pyrunner.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	return cfg, nil
}

// newLogger writes to stderr; stdout may be the MCP stdio channel.
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// openStore returns nil when storage.db_path is not configured.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.DBPath == "" {
		return nil, nil
	}
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}
