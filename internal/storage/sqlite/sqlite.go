package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/pyrunner/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// timeLayout is fixed-width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const executionColumns = `id, mode, code, success, status_code, stdout, stderr, elapsed_ns, created_at`

func (s *SQLiteStore) RecordExecution(ctx context.Context, e *storage.Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Mode), e.Code, e.Success, e.StatusCode, e.Stdout, e.Stderr,
		e.Elapsed.Nanoseconds(), e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*storage.Execution, error) {
	if id == "" {
		return nil, fmt.Errorf("execution id is empty")
	}

	// Prefixes are compared literally; LIKE would treat % and _ as wildcards.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE substr(id, 1, length(?)) = ?
		ORDER BY id = ? DESC`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		if e.ID == id {
			return e, nil
		}
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("execution not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous execution prefix %q matches %d executions", id, len(matches))
	}
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]storage.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + executionColumns + ` FROM executions WHERE 1 = 1`
	var args []any

	if opts.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(opts.Mode))
	}
	if opts.FailedOnly {
		query += ` AND success = 0`
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var execs []storage.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *e)
	}
	return execs, rows.Err()
}

func (s *SQLiteStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE created_at < ?`,
		t.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("deleting executions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanExecution(rows *sql.Rows) (*storage.Execution, error) {
	var e storage.Execution
	var mode, createdAt string
	var elapsed int64
	err := rows.Scan(&e.ID, &mode, &e.Code, &e.Success, &e.StatusCode,
		&e.Stdout, &e.Stderr, &elapsed, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Mode = storage.Mode(mode)
	e.Elapsed = time.Duration(elapsed)
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &e, nil
}
