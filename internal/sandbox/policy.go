package sandbox

import (
	"time"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

// Policy defines how child interpreters are launched.
type Policy struct {
	Interpreter string            // Interpreter binary (e.g. "python3")
	Args        []string          // Arguments; code is always fed on stdin
	Timeout     time.Duration     // Wall-clock limit when the request sets none
	Workdir     string            // Empty means the caller's working directory
	Env         map[string]string // Added on top of the inherited environment
}

// DefaultPolicy returns the defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Interpreter: executor.DefaultInterpreter(),
		Args:        []string{"-u"},
		Timeout:     executor.DefaultTimeout,
	}
}

// timeoutFor picks the request timeout over the policy one.
func (p Policy) timeoutFor(req executor.Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if p.Timeout > 0 {
		return p.Timeout
	}
	return executor.DefaultTimeout
}
