package storage

import (
	"context"
	"time"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

// Mode identifies which executor produced an execution.
type Mode string

const (
	ModeIsolated   Mode = "isolated"
	ModePersistent Mode = "persistent"
)

// Execution is one recorded call to an executor.
type Execution struct {
	ID         string        `json:"id" yaml:"id"`
	Mode       Mode          `json:"mode" yaml:"mode"`
	Code       string        `json:"code" yaml:"code"`
	Success    bool          `json:"success" yaml:"success"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Stdout     string        `json:"stdout" yaml:"stdout"`
	Stderr     string        `json:"stderr" yaml:"stderr"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	CreatedAt  time.Time     `json:"created_at" yaml:"created_at"`
}

// NewExecution builds a record from a request's code and its result.
// ID and CreatedAt are filled in by the store.
func NewExecution(mode Mode, code string, res *executor.Result) *Execution {
	return &Execution{
		Mode:       mode,
		Code:       code,
		Success:    res.Success,
		StatusCode: res.StatusCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		Elapsed:    res.Elapsed,
	}
}

// ListOptions controls filtering and pagination for ListExecutions.
type ListOptions struct {
	Mode       Mode
	FailedOnly bool
	Limit      int
	Offset     int
}

// Store is the persistence interface for the execution audit log.
type Store interface {
	// RecordExecution inserts an execution, assigning ID and CreatedAt when unset.
	RecordExecution(ctx context.Context, e *Execution) error

	// GetExecution returns an execution by ID or ID prefix.
	GetExecution(ctx context.Context, id string) (*Execution, error)

	// ListExecutions returns executions ordered by created_at descending.
	ListExecutions(ctx context.Context, opts ListOptions) ([]Execution, error)

	// DeleteBefore removes executions older than t and reports how many.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)

	// Close releases resources.
	Close() error
}
