package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

// encodingHeader is written ahead of the code so the interpreter decodes
// its source as UTF-8 whatever the platform default is.
const encodingHeader = "# -*- coding: utf-8 -*-\n"

// waitDelay bounds how long Run waits for output pipes after the child
// exits or is killed; grandchildren may keep them open.
const waitDelay = time.Second

// Process runs each request in a new interpreter process.
type Process struct {
	Policy Policy
	logger *slog.Logger
}

// NewProcess creates a sandbox with the given policy. A nil logger discards.
func NewProcess(policy Policy, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Process{Policy: policy, logger: logger}
}

// Run pipes the code to a fresh interpreter and waits for it to finish or
// for the timeout to expire, in which case the child is killed.
func (p *Process) Run(ctx context.Context, req executor.Request) *executor.Result {
	timeout := p.Policy.timeoutFor(req)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.Policy.Interpreter, p.Policy.Args...)
	cmd.Dir = p.Policy.Workdir
	cmd.Env = executor.Environ(p.Policy.Env)
	cmd.Stdin = strings.NewReader(encodingHeader + req.Code)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		p.logger.Warn("python process cancelled", "error", ctx.Err())
		return executor.Failure(ctx.Err(), elapsed)
	}
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		p.logger.Info("python process timed out", "timeout", timeout)
		return &executor.Result{
			Success:    false,
			StatusCode: executor.StatusInternal,
			Stderr:     fmt.Sprintf("Timeout (%s)", timeout),
			Elapsed:    timeout,
		}
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
			exitCode = cmd.ProcessState.ExitCode()
		default:
			p.logger.Error("python process failed to run", "interpreter", p.Policy.Interpreter, "error", err)
			return executor.Failure(err, 0)
		}
	}

	p.logger.Debug("python process finished", "exit_code", exitCode, "elapsed", elapsed)

	return &executor.Result{
		Success:    exitCode == 0,
		StatusCode: exitCode,
		Stdout:     executor.DecodeText(stdout.Bytes()),
		Stderr:     executor.DecodeText(stderr.Bytes()),
		Elapsed:    elapsed,
	}
}
