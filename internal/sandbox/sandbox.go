// Package sandbox runs Python code in a fresh, disposable child interpreter
// per call. Nothing defined by one call survives into the next.
package sandbox

import (
	"context"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

// Sandbox runs code in an isolated environment.
// Faults never surface as errors; they are reported in the Result.
type Sandbox interface {
	Run(ctx context.Context, req executor.Request) *executor.Result
}
