package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCode(t *testing.T) {
	t.Cleanup(func() { codeFlag = "" })

	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte("print('file')\n"), 0o644))

	code, err := readCode(nil, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "print('file')\n", code)

	code, err = readCode(strings.NewReader("print('stdin')"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "print('stdin')", code)

	_, err = readCode(nil, nil)
	assert.Error(t, err)

	_, err = readCode(nil, []string{filepath.Join(t.TempDir(), "missing.py")})
	assert.Error(t, err)

	codeFlag = "print('flag')"
	code, err = readCode(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "print('flag')", code)

	_, err = readCode(nil, []string{path})
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "x = 1", firstLine("\n\n  x = 1\ny = 2", 38))
	assert.Equal(t, "", firstLine("   \n", 38))
	assert.Equal(t, "世界世..", firstLine("世界世界", 3))
}

func TestCallTargetMode(t *testing.T) {
	t.Cleanup(func() { callModeFlag = modeIsolated; callURLFlag = "" })

	callModeFlag = "bogus"
	_, err := callTarget()
	assert.Error(t, err)

	callModeFlag = modePersistent
	target, err := callTarget()
	require.NoError(t, err)
	assert.NotEmpty(t, target.Binary)
	assert.Equal(t, []string{"serve", modePersistent, "--transport", "stdio"}, target.Args[:4])

	callURLFlag = "http://localhost:8080/mcp"
	target, err = callTarget()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/mcp", target.URL)
	assert.Empty(t, target.Binary)
}

func TestRunCancellerConcurrent(t *testing.T) {
	var running runCanceller
	running.cancel() // nothing running

	ctx, cancel := context.WithCancel(context.Background())
	running.set(cancel)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			running.cancel()
		}()
	}
	wg.Wait()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	running.set(nil)
	running.cancel()
}
