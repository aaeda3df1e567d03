package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/interp"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

const (
	primaryPrompt      = "\033[36mpy>\033[0m "
	continuationPrompt = "\033[36m...\033[0m "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive persistent Python session",
	Long: `Start an interactive session backed by the persistent executor.

Definitions survive between inputs exactly as they do for MCP clients of
"pyrunner serve persistent". A line ending in ":" starts a block that is
finished by an empty line.

Examples:
  pyrunner repl
  pyrunner repl --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
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

	session := interp.NewSession(cfg.SessionConfig(), logger)
	defer session.Close()

	fmt.Printf("pyrunner - persistent Python session\n")
	fmt.Printf("Interpreter: %s\n", cfg.Python.Interpreter)
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          primaryPrompt,
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C while code is running cancels that run, which restarts the
	// interpreter. While idle, readline handles it and the loop exits.
	var running runCanceller
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			running.cancel()
		}
	}()

	var block []string
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt && len(block) > 0 {
				block = nil
				rl.SetPrompt(primaryPrompt)
				continue
			}
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if len(block) == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "/") {
				if quit := handleReplCommand(trimmed, session); quit {
					return nil
				}
				continue
			}
			if strings.HasSuffix(trimmed, ":") {
				block = append(block, line)
				rl.SetPrompt(continuationPrompt)
				continue
			}
			block = []string{line}
		} else if strings.TrimSpace(line) != "" {
			block = append(block, line)
			continue
		}

		code := strings.Join(block, "\n")
		block = nil
		rl.SetPrompt(primaryPrompt)

		reqCtx, cancel := context.WithCancel(context.Background())
		running.set(cancel)
		res := session.Run(reqCtx, code)
		running.set(nil)
		cancel()

		if store != nil {
			if err := store.RecordExecution(context.Background(), storage.NewExecution(storage.ModePersistent, code, res)); err != nil {
				logger.Warn("recording execution", slog.Any("error", err))
			}
		}

		printResult(res)
	}
}

// runCanceller holds the cancel func of the run in progress. The signal
// goroutine and the input loop share it.
type runCanceller struct {
	mu sync.Mutex
	fn context.CancelFunc
}

func (c *runCanceller) set(fn context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = fn
}

// cancel stops the current run, if any.
func (c *runCanceller) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fn != nil {
		c.fn()
	}
}

func printResult(res *executor.Result) {
	if res.Stdout != "" {
		fmt.Print(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Println()
		}
	}
	if res.Stderr != "" {
		fmt.Printf("\033[31m%s\033[0m", strings.TrimRight(res.Stderr, "\n"))
		fmt.Println()
	}
}

// handleReplCommand runs a slash command and reports whether to exit.
func handleReplCommand(input string, session *interp.Session) bool {
	ctx := context.Background()
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/reset":
		fmt.Println(session.Reset(ctx))
		fmt.Println()
	case "/vars":
		fmt.Println(session.List(ctx))
		fmt.Println()
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help   - Show this help")
		fmt.Println("  /vars   - List defined variables")
		fmt.Println("  /reset  - Clear all variables, functions and imports")
		fmt.Println("  /quit   - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pyrunner_history")
	}
	dir = filepath.Join(dir, "pyrunner")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return filepath.Join(os.TempDir(), "pyrunner_history")
	}
	return filepath.Join(dir, "history")
}
