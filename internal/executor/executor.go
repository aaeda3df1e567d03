// Package executor holds the types shared by both execution models: the
// request, the structured result, input validation and the helpers that turn
// infrastructure faults into results.
package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// DefaultTimeout is the wall-clock limit applied by the isolated executor
// when a request does not carry its own.
const DefaultTimeout = 10 * time.Second

const (
	// StatusOK is a clean exit.
	StatusOK = 0
	// StatusFailed is reported by the persistent executor for any fault
	// raised by the executed code.
	StatusFailed = 1
	// StatusInternal marks a timeout or an infrastructure fault.
	StatusInternal = -1
)

// EmptyCodeMessage is returned to callers instead of executing blank input.
const EmptyCodeMessage = "Error: Code cannot be empty"

// ErrEmptyCode is returned by Validate for empty or whitespace-only code.
var ErrEmptyCode = errors.New("code cannot be empty")

// Request represents a request to execute Python code.
type Request struct {
	Code    string        `json:"code"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result represents the output and status of an execution.
// Stdout and Stderr are always valid UTF-8 and never nil-like; Elapsed is
// populated on every path.
type Result struct {
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Validate rejects code that is empty after trimming whitespace.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}
	return nil
}

// DecodeText decodes captured output as UTF-8, replacing undecodable
// bytes with U+FFFD instead of failing.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

// Kinder is implemented by errors that name their own kind.
type Kinder interface {
	Kind() string
}

// ErrorKind names an error. An error in the chain implementing Kinder wins;
// otherwise context added with fmt.Errorf is peeled off and the innermost
// error is named by its concrete Go type, e.g. "exec.Error".
func ErrorKind(err error) string {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	for isContextWrap(err) {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// isContextWrap reports whether err only adds a message prefix, as
// fmt.Errorf with %w does.
func isContextWrap(err error) bool {
	switch fmt.Sprintf("%T", err) {
	case "*fmt.wrapError", "*fmt.wrapErrors":
		return true
	}
	return false
}

// Failure builds the result reported for faults that happen outside the
// executed code: a missing interpreter, broken pipes, a dead child.
func Failure(err error, elapsed time.Duration) *Result {
	return &Result{
		Success:    false,
		StatusCode: StatusInternal,
		Stderr:     fmt.Sprintf("Error: %s: %v", ErrorKind(err), err),
		Elapsed:    elapsed,
	}
}
