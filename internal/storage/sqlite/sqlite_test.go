package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *SQLiteStore, e *storage.Execution) *storage.Execution {
	t.Helper()
	if err := s.RecordExecution(context.Background(), e); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}
	return e
}

func TestRecordAndGetExecution(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := storage.NewExecution(storage.ModeIsolated, `print("hi")`, &executor.Result{
		Success:    true,
		StatusCode: 0,
		Stdout:     "hi\n",
		Elapsed:    42 * time.Millisecond,
	})
	record(t, s, e)

	require.NotEmpty(t, e.ID)
	require.False(t, e.CreatedAt.IsZero())

	got, err := s.GetExecution(ctx, e.ID)
	require.NoError(t, err)

	assert.Equal(t, storage.ModeIsolated, got.Mode)
	assert.Equal(t, `print("hi")`, got.Code)
	assert.True(t, got.Success)
	assert.Equal(t, "hi\n", got.Stdout)
	assert.Equal(t, 42*time.Millisecond, got.Elapsed)
	assert.WithinDuration(t, e.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestGetExecutionByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	record(t, s, &storage.Execution{ID: "abc12345-0000", Mode: storage.ModePersistent, Code: "x = 1"})
	record(t, s, &storage.Execution{ID: "abd99999-0000", Mode: storage.ModePersistent, Code: "y = 1"})

	got, err := s.GetExecution(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc12345-0000", got.ID)

	_, err = s.GetExecution(ctx, "ab")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = s.GetExecution(ctx, "zzz")
	assert.ErrorContains(t, err, "not found")
}

func TestGetExecutionPrefixIsLiteral(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	record(t, s, &storage.Execution{ID: "abc12345-0000", Mode: storage.ModeIsolated, Code: "x = 1"})

	for _, id := range []string{"%", "_", "a%", "a_c", "ABC"} {
		_, err := s.GetExecution(ctx, id)
		assert.ErrorContains(t, err, "not found", "id %q", id)
	}

	_, err := s.GetExecution(ctx, "")
	assert.ErrorContains(t, err, "empty")
}

func TestListExecutions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	record(t, s, &storage.Execution{ID: "1", Mode: storage.ModeIsolated, Code: "a", Success: true, CreatedAt: base})
	record(t, s, &storage.Execution{ID: "2", Mode: storage.ModePersistent, Code: "b", Success: false, StatusCode: 1, CreatedAt: base.Add(time.Second)})
	record(t, s, &storage.Execution{ID: "3", Mode: storage.ModeIsolated, Code: "c", Success: false, StatusCode: -1, CreatedAt: base.Add(2 * time.Second)})

	all, err := s.ListExecutions(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID, "newest first")

	isolated, err := s.ListExecutions(ctx, storage.ListOptions{Mode: storage.ModeIsolated})
	require.NoError(t, err)
	assert.Len(t, isolated, 2)

	failed, err := s.ListExecutions(ctx, storage.ListOptions{FailedOnly: true})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	page, err := s.ListExecutions(ctx, storage.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2", page[0].ID)
}

func TestDeleteBefore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	record(t, s, &storage.Execution{ID: "old", Mode: storage.ModeIsolated, Code: "a", CreatedAt: base})
	record(t, s, &storage.Execution{ID: "new", Mode: storage.ModeIsolated, Code: "b", CreatedAt: base.Add(time.Hour)})

	n, err := s.DeleteBefore(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := s.ListExecutions(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].ID)
}

func TestRejectsUnknownMode(t *testing.T) {
	s := testStore(t)

	err := s.RecordExecution(context.Background(), &storage.Execution{Mode: "docker", Code: "x"})
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pyrunner.db")

	s, err := Open(path)
	require.NoError(t, err)
	record(t, s, &storage.Execution{ID: "keep", Mode: storage.ModeIsolated, Code: "x"})
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetExecution(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Code)
}
