package sqlrunner

import (
	"context"
	"fmt"
	"strings"
)

const (
	schemaTitle     = "CURRENT SCHEMA:\n"
	noTablesNotice  = "(No tables found in database)"
	unavailableNote = "(Schema unavailable)"
)

// Schema returns a plain-text summary of every user table and its columns:
//
//	CURRENT SCHEMA:
//	- Table 'orders' columns: id, customer_id, total
func (r *Runner) Schema(ctx context.Context) (string, error) {
	tables, err := r.tables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return noTablesNotice, nil
	}

	var sb strings.Builder
	sb.WriteString(schemaTitle)
	for _, table := range tables {
		columns, err := r.columns(ctx, table)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "- Table '%s' columns: %s\n", table, strings.Join(columns, ", "))
	}

	return sb.String(), nil
}

// SchemaContext is Schema for prompt building: failures are logged and
// replaced by a notice.
func (r *Runner) SchemaContext(ctx context.Context) string {
	schema, err := r.Schema(ctx)
	if err != nil {
		r.logger.Warn("could not read schema", "error", err)
		return unavailableNote
	}
	return schema
}

func (r *Runner) tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (r *Runner) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
