// Package sqlrunner executes read-only queries against the SQLite warehouse
// and summarizes its schema for LLM prompts.
package sqlrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultMaxRows caps the rows returned by a single query.
	DefaultMaxRows = 1000

	// NoResultsMessage is reported for statements that return no columns.
	NoResultsMessage = "Query executed successfully (no results)."
)

// ForbiddenKeywords are rejected anywhere in a query as whole words.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "GRANT", "EXEC",
}

var forbiddenPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)

// Result is the outcome of a query.
type Result struct {
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`

	// Message is set instead of Columns and Rows when the statement
	// produced no result set.
	Message string `json:"message,omitempty"`

	// Truncated reports that more than MaxRows rows were available.
	Truncated bool `json:"truncated,omitempty"`
}

// Runner runs queries on a single database handle.
type Runner struct {
	db      *sql.DB
	maxRows int
	logger  *slog.Logger
}

// Open opens the SQLite database at path read-only. ":memory:" opens an
// empty in-memory database.
func Open(path string, logger *slog.Logger) (*Runner, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		var err error
		if dsn, err = readOnlyDSN(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	return New(db, logger), nil
}

// readOnlyDSN returns a SQLite URI for path with mode=ro. The path is
// made absolute and percent-encoded so "?" and "#" stay part of it.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, logger *slog.Logger) *Runner {
	return &Runner{
		db:      db,
		maxRows: DefaultMaxRows,
		logger:  logger,
	}
}

// SetMaxRows overrides DefaultMaxRows. n <= 0 disables the cap.
func (r *Runner) SetMaxRows(n int) {
	r.maxRows = n
}

// Close closes the database.
func (r *Runner) Close() error {
	return r.db.Close()
}

// Check returns ErrForbiddenStatement if query contains a forbidden keyword.
func Check(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if kw := forbiddenPattern.FindString(query); kw != "" {
		return fmt.Errorf("%w: found %s", ErrForbiddenStatement, strings.ToUpper(kw))
	}
	return nil
}

// Run executes query after Check passes.
func (r *Runner) Run(ctx context.Context, query string) (*Result, error) {
	if err := Check(query); err != nil {
		r.logger.Warn("rejected query", "error", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	if len(columns) == 0 {
		return &Result{Message: NoResultsMessage}, nil
	}

	result := &Result{
		Columns: columns,
		Rows:    []map[string]any{},
	}

	for rows.Next() {
		if r.maxRows > 0 && len(result.Rows) >= r.maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	r.logger.Debug("query executed",
		"columns", len(columns),
		"rows", len(result.Rows),
		"truncated", result.Truncated,
	)

	return result, nil
}

// normalize makes driver values JSON friendly.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
