package interp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

func testSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.Interpreter == "" {
		cfg.Interpreter = executor.DefaultInterpreter()
	}
	if _, err := exec.LookPath(cfg.Interpreter); err != nil {
		t.Skipf("%s not found on PATH", cfg.Interpreter)
	}
	s := NewSession(cfg, nil)
	t.Cleanup(s.Close)
	return s
}

func mustRun(t *testing.T, s *Session, code string) *executor.Result {
	t.Helper()
	res := s.Run(context.Background(), code)
	require.True(t, res.Success, "code %q failed: %s", code, res.Stderr)
	return res
}

func TestRunDefinitionsPersist(t *testing.T) {
	s := testSession(t, Config{})

	mustRun(t, s, "x = 5")
	res := mustRun(t, s, "print(x)")

	assert.Equal(t, executor.StatusOK, res.StatusCode)
	assert.Equal(t, "5\n", res.Stdout)
	assert.Empty(t, res.Stderr)
}

func TestRunFunctionsAndImportsPersist(t *testing.T) {
	s := testSession(t, Config{})

	mustRun(t, s, "import math\ndef area(r):\n    return math.pi * r * r")
	res := mustRun(t, s, "print(round(area(2), 2))")

	assert.Equal(t, "12.57\n", res.Stdout)
}

func TestRunException(t *testing.T) {
	s := testSession(t, Config{})

	res := s.Run(context.Background(), "print('before')\n1/0")

	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusFailed, res.StatusCode)
	assert.Equal(t, "before\n", res.Stdout)
	assert.Contains(t, res.Stderr, "ZeroDivisionError: division by zero")
	assert.Contains(t, res.Stderr, "Traceback (most recent call last)")
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestRunCapturedStderrPrecedesFault(t *testing.T) {
	s := testSession(t, Config{})

	res := s.Run(context.Background(), "import sys\nsys.stderr.write('warn')\nraise ValueError('bad')")

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Stderr, "warn\nValueError: bad\n"), res.Stderr)
}

func TestRunPartialMutationsSurviveFault(t *testing.T) {
	s := testSession(t, Config{})

	res := s.Run(context.Background(), "a = 1\n1/0\nb = 2")
	require.False(t, res.Success)

	assert.Equal(t, "1\n", mustRun(t, s, "print(a)").Stdout)
	res = s.Run(context.Background(), "print(b)")
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "NameError")
}

func TestRunSystemExitIsCaptured(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, "kept = 'yes'")

	res := s.Run(context.Background(), "import sys\nsys.exit(4)")
	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusFailed, res.StatusCode)
	assert.Contains(t, res.Stderr, "SystemExit: 4")

	assert.Equal(t, "yes\n", mustRun(t, s, "print(kept)").Stdout)
}

func TestRunClosedStreamsKeepNamespace(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, "keep = 42")

	res := s.Run(context.Background(), "import sys\nprint('partial')\nsys.stdout.close()\nprint('after')")
	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusFailed, res.StatusCode)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Contains(t, res.Stderr, "ValueError")

	res = s.Run(context.Background(), "import sys\nprint('closed')\nsys.stdout.close()")
	assert.True(t, res.Success, res.Stderr)
	assert.Equal(t, "closed\n", res.Stdout)

	res = s.Run(context.Background(), "import sys\nsys.stderr.write('warn')\nsys.stderr.close()\nkeep += 1")
	assert.True(t, res.Success, res.Stderr)
	assert.Equal(t, "warn", res.Stderr)

	assert.Equal(t, "43\n", mustRun(t, s, "print(keep)").Stdout)
}

func TestRunRedirectionIsScopedToCall(t *testing.T) {
	s := testSession(t, Config{})

	first := mustRun(t, s, "print('one')")
	second := mustRun(t, s, "print('two')")

	assert.Equal(t, "one\n", first.Stdout)
	assert.Equal(t, "two\n", second.Stdout)
}

func TestRunMultiByteOutput(t *testing.T) {
	s := testSession(t, Config{})

	res := mustRun(t, s, `print("héllo 世界 🚀")`)

	assert.Equal(t, "héllo 世界 🚀\n", res.Stdout)
}

func TestRunInvalidUTF8(t *testing.T) {
	s := NewSession(Config{Interpreter: "pyrunner-no-such-python"}, nil)

	res := s.Run(context.Background(), "x = '\xff'")

	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusFailed, res.StatusCode)
	assert.Equal(t, "UnicodeDecodeError: 'utf-8' codec can't decode byte 0xff in position 5: invalid utf-8", res.Stderr)
	assert.Empty(t, res.Stdout)
	assert.Nil(t, s.proc)
}

func TestRunMissingInterpreter(t *testing.T) {
	s := NewSession(Config{Interpreter: "pyrunner-no-such-python"}, nil)

	res := s.Run(context.Background(), "print(1)")

	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusInternal, res.StatusCode)
	assert.Contains(t, res.Stderr, "exec.Error")
	assert.Equal(t, time.Duration(0), res.Elapsed)
}

func TestRunInterpreterCrashStartsFresh(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, "x = 1")

	res := s.Run(context.Background(), "import os\nos._exit(1)")
	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusInternal, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Stderr, "Error: InterpreterExited: interpreter exited"), res.Stderr)

	res = s.Run(context.Background(), "print(x)")
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "NameError")
}

func TestRunTimeout(t *testing.T) {
	s := testSession(t, Config{Timeout: time.Second})
	mustRun(t, s, "x = 1")

	res := s.Run(context.Background(), "while True:\n    pass")

	assert.False(t, res.Success)
	assert.Equal(t, executor.StatusInternal, res.StatusCode)
	assert.Contains(t, res.Stderr, "Timeout (1s)")

	assert.Equal(t, "2\n", mustRun(t, s, "print(1 + 1)").Stdout)
}

func TestRunConcurrentCallersDoNotInterleave(t *testing.T) {
	s := testSession(t, Config{})

	var wg sync.WaitGroup
	results := make([]*executor.Result, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Run(context.Background(), fmt.Sprintf("for _ in range(50):\n    print(%d)", i))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.True(t, res.Success, res.Stderr)
		assert.Equal(t, strings.Repeat(fmt.Sprintf("%d\n", i), 50), res.Stdout)
	}
}

func TestResetClearsNamespace(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, "x = 5")

	assert.Equal(t, ResetMessage, s.Reset(context.Background()))

	res := s.Run(context.Background(), "print(x)")
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "NameError")

	// builtins survive the reset
	assert.Equal(t, "3\n", mustRun(t, s, "print(len('abc'))").Stdout)
}

func TestResetBeforeFirstRun(t *testing.T) {
	s := NewSession(Config{Interpreter: "pyrunner-no-such-python"}, nil)

	assert.Equal(t, ResetMessage, s.Reset(context.Background()))
}

func TestListEmpty(t *testing.T) {
	s := testSession(t, Config{})

	assert.Equal(t, EmptyMessage, s.List(context.Background()))

	mustRun(t, s, "_hidden = 1")
	assert.Equal(t, EmptyMessage, s.List(context.Background()))
}

func TestEntriesRoundTrip(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, strings.Join([]string{
		"zeta = [1, 2, 3]",
		"alpha = 'a' * 80",
		"def helper():",
		"    return 1",
		"class Adder:",
		"    def __call__(self, a, b):",
		"        return a + b",
		"add = Adder()",
		"_private = 42",
	}, "\n"))

	entries, err := s.Entries(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Adder", "add", "alpha", "helper", "zeta"}, names)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, KindFunction, byName["helper"].Kind)
	assert.Equal(t, KindFunction, byName["Adder"].Kind)
	assert.Equal(t, KindCallable, byName["add"].Kind)
	assert.Equal(t, KindVariable, byName["zeta"].Kind)
	assert.Equal(t, "list", byName["zeta"].Type)
	assert.Equal(t, "[1, 2, 3]", byName["zeta"].Value)

	listing := s.List(context.Background())
	assert.Contains(t, listing, "alpha: str = '"+strings.Repeat("a", 49)+"...")
	assert.NotContains(t, listing, "_private")
}

func TestEntriesRenderingFault(t *testing.T) {
	s := testSession(t, Config{})
	mustRun(t, s, "class Broken:\n    def __repr__(self):\n        raise ValueError('boom')\nb = Broken()\nok = 1")

	listing := s.List(context.Background())

	assert.Contains(t, listing, "b: <error: ValueError: boom>")
	assert.Contains(t, listing, "ok: int = 1")
}
