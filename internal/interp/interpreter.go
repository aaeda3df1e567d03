package interp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

const (
	opExec  = "exec"
	opList  = "list"
	opReset = "reset"
)

type request struct {
	Op    string `json:"op"`
	Code  string `json:"code,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type execResponse struct {
	Status int    `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

type listResponse struct {
	Entries []Entry `json:"entries"`
	Error   string  `json:"error"`
}

type resetResponse struct {
	OK bool `json:"ok"`
}

// ExitedError reports that the interpreter process went away during a call.
type ExitedError struct {
	Err error
}

func (e *ExitedError) Error() string { return "interpreter exited: " + e.Err.Error() }
func (e *ExitedError) Unwrap() error { return e.Err }

// Kind names the fault in results shown to callers.
func (e *ExitedError) Kind() string { return "InterpreterExited" }

// interpreter is one running driver process and its protocol pipes.
type interpreter struct {
	cmd       *exec.Cmd
	requests  *os.File
	responses *os.File
	reader    *bufio.Reader
	done      chan struct{}
}

func startInterpreter(cfg Config) (*interpreter, error) {
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating request pipe: %w", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, fmt.Errorf("creating response pipe: %w", err)
	}

	cmd := exec.Command(cfg.Interpreter, "-u", "-c", driverSource)
	cmd.Dir = cfg.Workdir
	cmd.Env = executor.Environ(cfg.Env)
	cmd.ExtraFiles = []*os.File{reqR, respW} // fd 3, fd 4
	cmd.Stdout = cfg.Output
	cmd.Stderr = cfg.Output
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		respR.Close()
		respW.Close()
		return nil, err
	}
	// The child holds its own copies; closing ours lets reads see EOF
	// as soon as the child exits.
	reqR.Close()
	respW.Close()

	ip := &interpreter{
		cmd:       cmd,
		requests:  reqW,
		responses: respR,
		reader:    bufio.NewReader(respR),
		done:      make(chan struct{}),
	}
	go func() {
		cmd.Wait()
		close(ip.done)
	}()
	return ip, nil
}

func (ip *interpreter) alive() bool {
	select {
	case <-ip.done:
		return false
	default:
		return true
	}
}

// call sends one request and decodes one response into resp. If ctx ends
// first the process is killed; the interpreter must not be reused after
// any error.
func (ip *interpreter) call(ctx context.Context, req request, resp any) error {
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if _, err := ip.requests.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		l, err := ip.reader.ReadBytes('\n')
		ch <- readResult{l, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return &ExitedError{Err: r.err}
		}
		if err := json.Unmarshal(r.line, resp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	case <-ctx.Done():
		ip.kill()
		return ctx.Err()
	}
}

func (ip *interpreter) kill() {
	if ip.alive() {
		ip.cmd.Process.Kill()
	}
	ip.requests.Close()
	<-ip.done
	ip.responses.Close()
}
