package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/format"
	"github.com/michaelbrown/pyrunner/internal/sandbox"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

var (
	codeFlag    string
	timeoutFlag time.Duration
	bareFlag    bool
)

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Run Python code once in a fresh interpreter",
	Long: `Run Python code in a fresh interpreter and print the execution result.

Code comes from --code, from a file, or from stdin when the file is "-".

Examples:
  pyrunner run script.py
  echo 'print(1 + 1)' | pyrunner run -
  pyrunner run --code 'import sys; print(sys.version)' --timeout 30s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&codeFlag, "code", "c", "", "Code to run")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Execution timeout (overrides isolated.timeout)")
	runCmd.Flags().BoolVar(&bareFlag, "bare", false, "Print only stdout and stderr")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readCode(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if err := executor.Validate(code); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), executor.EmptyCodeMessage)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sb := sandbox.NewProcess(cfg.SandboxPolicy(), logger)
	res := sb.Run(ctx, executor.Request{Code: code, Timeout: timeoutFlag})

	if store != nil {
		if err := store.RecordExecution(ctx, storage.NewExecution(storage.ModeIsolated, code, res)); err != nil {
			logger.Warn("recording execution", slog.Any("error", err))
		}
	}

	if bareFlag {
		fmt.Fprint(cmd.OutOrStdout(), format.Bare(res))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), format.Verbose(res))
	}
	return nil
}

func readCode(stdin io.Reader, args []string) (string, error) {
	switch {
	case codeFlag != "" && len(args) > 0:
		return "", fmt.Errorf("use either --code or a file argument, not both")
	case codeFlag != "":
		return codeFlag, nil
	case len(args) == 0:
		return "", fmt.Errorf("no code given (pass a file, \"-\" for stdin, or --code)")
	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), nil
	}
}
