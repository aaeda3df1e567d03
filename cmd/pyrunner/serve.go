package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/interp"
	"github.com/michaelbrown/pyrunner/internal/sandbox"
	"github.com/michaelbrown/pyrunner/internal/server"
)

const (
	modeIsolated   = "isolated"
	modePersistent = "persistent"
)

var (
	transportFlag string
	portFlag      int
)

var serveCmd = &cobra.Command{
	Use:   "serve [isolated|persistent]",
	Short: "Start the MCP tool server",
	Long: `Start an MCP server exposing run_python_code.

In isolated mode (the default) every call runs in a fresh interpreter with a
fixed timeout. In persistent mode one interpreter is kept for the lifetime of
the server, and reset_python_environment and list_defined_variables are also
available.

Examples:
  pyrunner serve
  pyrunner serve persistent
  pyrunner serve isolated --transport http --port 9090`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{modeIsolated, modePersistent},
	RunE:      runServe,
}

func init() {
	serveCmd.Flags().StringVar(&transportFlag, "transport", "", "Transport: stdio or http (overrides config)")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on for http (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transportFlag != "" {
		cfg.Server.Transport = transportFlag
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	mode := modeIsolated
	if len(args) == 1 {
		mode = args[0]
	}

	opts := server.Options{
		Timeout: cfg.Isolated.Timeout,
		Store:   store,
		Logger:  logger,
	}

	var s *mcpserver.MCPServer
	switch mode {
	case modePersistent:
		session := interp.NewSession(cfg.SessionConfig(), logger)
		defer session.Close()
		s = server.NewPersistent(session, opts)
	default:
		s = server.NewIsolated(sandbox.NewProcess(cfg.SandboxPolicy(), logger), opts)
	}

	logger.Info("starting MCP server",
		slog.String("mode", mode),
		slog.String("transport", cfg.Server.Transport),
		slog.Bool("storage", store != nil),
	)

	if cfg.Server.Transport == "stdio" {
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("serving stdio: %w", err)
		}
		return nil
	}

	srv := server.NewHTTP(s, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	return srv.Start(cfg.Server.Port)
}
