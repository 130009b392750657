// Package store records program runs in a SQL database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	// SQL drivers

	_ "github.com/go-sql-driver/mysql" // MariaDB & MySQL
	_ "github.com/lib/pq"              // Postgres
	_ "modernc.org/sqlite"             // SQLite
)

// Run is one recorded execution.
type Run struct {
	ID          int64
	RunID       string
	Program     string
	StartedAt   time.Time
	DurationMs  int64
	Status      string // "ok" or a diagnostic code
	Message     string
	Value       int64
	Iterations  int64
	Calls       int64
	OutputLines int64
	Variables   map[string]int64
}

// StatusOK marks a run that completed without error.
const StatusOK = "ok"

// Store wraps a database handle for one of the supported drivers.
type Store struct {
	db     *sql.DB
	driver string
}

var idColumn = map[string]string{
	"sqlite":   "id INTEGER PRIMARY KEY AUTOINCREMENT",
	"postgres": "id BIGSERIAL PRIMARY KEY",
	"mysql":    "id BIGINT AUTO_INCREMENT PRIMARY KEY",
}

// Open connects to the database and verifies it is reachable. For SQLite
// the parent directory of the database file is created if needed.
func Open(driver, dsn string) (*Store, error) {
	if _, ok := idColumn[driver]; !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if driver == "sqlite" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection keeps SQLite writes serialized.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			` + idColumn[s.driver] + `,
			run_id VARCHAR(64) NOT NULL,
			program VARCHAR(255) NOT NULL,
			started_ms BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			status VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			result BIGINT NOT NULL,
			iterations BIGINT NOT NULL,
			calls BIGINT NOT NULL,
			output_lines BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_variables (
			run_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			val BIGINT NOT NULL,
			PRIMARY KEY (run_id, name)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// RecordRun inserts r and its variables in one transaction and returns the
// new row id.
func (s *Store) RecordRun(ctx context.Context, r Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO runs (run_id, program, started_ms, duration_ms, status, message,
		result, iterations, calls, output_lines) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{r.RunID, r.Program, r.StartedAt.UnixMilli(), r.DurationMs, r.Status, r.Message,
		r.Value, r.Iterations, r.Calls, r.OutputLines}

	var id int64
	if s.driver == "postgres" {
		err = tx.QueryRowContext(ctx, s.rebind(insert)+" RETURNING id", args...).Scan(&id)
	} else {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, insert, args...); err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}

	names := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	varInsert := s.rebind(`INSERT INTO run_variables (run_id, name, val) VALUES (?, ?, ?)`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, varInsert, id, name, r.Variables[name]); err != nil {
			return 0, fmt.Errorf("store: insert variable %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first. Variables are not loaded.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, run_id, program, started_ms, duration_ms, status, message,
		result, iterations, calls, output_lines FROM runs ORDER BY id DESC`
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedMs int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Program, &startedMs, &r.DurationMs, &r.Status,
			&r.Message, &r.Value, &r.Iterations, &r.Calls, &r.OutputLines); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return runs, nil
}

// ErrRunNotFound is returned by RunVariables for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// RunVariables loads the final variables of a recorded run.
func (s *Store) RunVariables(ctx context.Context, id int64) (map[string]int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM runs WHERE id = ?`), id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("store: lookup run %d: %w", id, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("store: run %d: %w", id, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT name, val FROM run_variables WHERE run_id = ? ORDER BY name`), id)
	if err != nil {
		return nil, fmt.Errorf("store: load variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			val  int64
		)
		if err := rows.Scan(&name, &val); err != nil {
			return nil, fmt.Errorf("store: scan variable: %w", err)
		}
		vars[name] = val
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load variables: %w", err)
	}
	return vars, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
