package executor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	for _, code := range []string{"", " ", "\n\t  \r\n"} {
		assert.ErrorIs(t, Validate(code), ErrEmptyCode, "code %q", code)
	}
	assert.NoError(t, Validate("print('hi')"))
	assert.NoError(t, Validate("  x = 1  "))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "héllo 世界\n", DecodeText([]byte("héllo 世界\n")))

	got := DecodeText([]byte{'a', 0xff, 'b'})
	assert.Equal(t, "a�b", got)

	assert.Equal(t, "", DecodeText(nil))
}

func TestErrorKind(t *testing.T) {
	_, err := exec.LookPath("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.Equal(t, "exec.Error", ErrorKind(err))
	assert.Equal(t, "errors.errorString", ErrorKind(errors.New("x")))
	assert.Equal(t, "exec.Error", ErrorKind(fmt.Errorf("starting: %w", err)))
	assert.Equal(t, "exec.Error", ErrorKind(fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", err))))
}

type namedError struct{ err error }

func (e namedError) Error() string { return "named: " + e.err.Error() }
func (e namedError) Unwrap() error { return e.err }
func (e namedError) Kind() string  { return "Named" }

func TestErrorKindPrefersKinder(t *testing.T) {
	err := fmt.Errorf("calling: %w", namedError{err: io.EOF})

	assert.Equal(t, "Named", ErrorKind(err))
	assert.Equal(t, "Error: Named: calling: named: EOF", Failure(err, 0).Stderr)
}

func TestFailure(t *testing.T) {
	res := Failure(errors.New("pipe closed"), 3*time.Millisecond)

	assert.False(t, res.Success)
	assert.Equal(t, StatusInternal, res.StatusCode)
	assert.Empty(t, res.Stdout)
	assert.Equal(t, "Error: errors.errorString: pipe closed", res.Stderr)
	assert.Equal(t, 3*time.Millisecond, res.Elapsed)
}
