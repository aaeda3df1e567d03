// Package interp runs Python code against a single long-lived namespace.
//
// A Session owns one interpreter child process that runs an embedded driver.
// The driver keeps the namespace, executes code with stdout and stderr
// redirected into buffers for the duration of each call, and answers
// list and reset requests. Requests travel as JSON lines on fd 3 and
// responses come back on fd 4, so whatever the executed code writes to the
// real file descriptors never corrupts the protocol.
//
// A fault inside executed code leaves the namespace exactly as the code left
// it; there is no rollback.
package interp

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

//go:embed driver.py
var driverSource string

// DefaultValueLimit is how many characters of a value the inspector shows.
const DefaultValueLimit = 50

// ResetMessage is returned by Reset.
const ResetMessage = "Python environment has been reset. All variables and imports cleared."

// Config describes how the interpreter is launched.
type Config struct {
	Interpreter string
	Workdir     string
	Env         map[string]string

	// Timeout bounds a single Run. Zero means no limit. When it fires the
	// interpreter is killed and the namespace is lost.
	Timeout time.Duration

	// ValueLimit truncates values in listings. Zero means DefaultValueLimit.
	ValueLimit int

	// Output receives anything the interpreter writes to its real stdout
	// and stderr outside the redirected calls. Nil discards.
	Output io.Writer
}

// Session is the single owner of a persistent namespace. It is safe for
// concurrent use; calls are serialized so output is never attributed to the
// wrong caller.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	proc *interpreter
}

// NewSession creates a session. The interpreter starts on first use.
func NewSession(cfg Config, logger *slog.Logger) *Session {
	if cfg.Interpreter == "" {
		cfg.Interpreter = executor.DefaultInterpreter()
	}
	if cfg.ValueLimit <= 0 {
		cfg.ValueLimit = DefaultValueLimit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{cfg: cfg, logger: logger}
}

// Run executes code against the namespace. Definitions persist into later
// calls until Reset.
func (s *Session) Run(ctx context.Context, code string) *executor.Result {
	start := time.Now()

	if !utf8.ValidString(code) {
		return &executor.Result{
			Success:    false,
			StatusCode: executor.StatusFailed,
			Stderr:     decodeError(code),
			Elapsed:    time.Since(start),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	proc, err := s.ensure()
	if err != nil {
		s.logger.Error("starting python interpreter", "interpreter", s.cfg.Interpreter, "error", err)
		return executor.Failure(err, 0)
	}

	var resp execResponse
	if err := proc.call(ctx, request{Op: opExec, Code: code}, &resp); err != nil {
		s.discard()
		elapsed := time.Since(start)
		if errors.Is(err, context.DeadlineExceeded) && s.cfg.Timeout > 0 {
			s.logger.Warn("python execution timed out; namespace lost", "timeout", s.cfg.Timeout)
			return &executor.Result{
				Success:    false,
				StatusCode: executor.StatusInternal,
				Stderr:     fmt.Sprintf("Timeout (%s); the Python environment was restarted", s.cfg.Timeout),
				Elapsed:    elapsed,
			}
		}
		s.logger.Warn("python interpreter lost; namespace lost", "error", err)
		return executor.Failure(err, elapsed)
	}

	return &executor.Result{
		Success:    resp.Status == executor.StatusOK,
		StatusCode: resp.Status,
		Stdout:     resp.Stdout,
		Stderr:     resp.Stderr,
		Elapsed:    time.Since(start),
	}
}

// Entries returns the user-visible names in the namespace, sorted.
// Names starting with an underscore are left out.
func (s *Session) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil || !s.proc.alive() {
		s.discard()
		return nil, nil
	}

	var resp listResponse
	if err := s.proc.call(ctx, request{Op: opList, Limit: s.cfg.ValueLimit}, &resp); err != nil {
		s.discard()
		return nil, fmt.Errorf("listing namespace: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("listing namespace: %s", resp.Error)
	}
	return resp.Entries, nil
}

// List renders the namespace for a human reader.
func (s *Session) List(ctx context.Context) string {
	entries, err := s.Entries(ctx)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return Describe(entries, s.cfg.ValueLimit)
}

// Reset clears every name except the builtins. It always succeeds: if the
// interpreter cannot be reached it is discarded and the next Run starts
// with a fresh namespace.
func (s *Session) Reset(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		var resp resetResponse
		if err := s.proc.call(ctx, request{Op: opReset}, &resp); err != nil || !resp.OK {
			s.logger.Warn("reset failed; discarding interpreter", "error", err)
			s.discard()
		}
	}
	s.logger.Info("python environment reset")
	return ResetMessage
}

// Close terminates the interpreter.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discard()
}

func (s *Session) ensure() (*interpreter, error) {
	if s.proc != nil && s.proc.alive() {
		return s.proc, nil
	}
	s.discard()

	proc, err := startInterpreter(s.cfg)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("python interpreter started", "pid", proc.cmd.Process.Pid)
	s.proc = proc
	return proc, nil
}

func (s *Session) discard() {
	if s.proc == nil {
		return
	}
	s.proc.kill()
	s.proc = nil
}

// decodeError describes the first byte that is not valid UTF-8.
func decodeError(code string) string {
	for i := 0; i < len(code); {
		r, size := utf8.DecodeRuneInString(code[i:])
		if r == utf8.RuneError && size <= 1 {
			return fmt.Sprintf("UnicodeDecodeError: 'utf-8' codec can't decode byte 0x%02x in position %d: invalid utf-8", code[i], i)
		}
		i += size
	}
	return "UnicodeDecodeError: invalid utf-8"
}
