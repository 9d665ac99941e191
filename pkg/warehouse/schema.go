package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"redditetl/pkg/models"
)

// ErrIncompatibleSchema is returned when the permanent table exists with a
// different column set and schema recreation is disabled
var ErrIncompatibleSchema = errors.New("existing table has an incompatible schema")

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// quoteIdent quotes a table or column name
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// columnList renders the dataset columns as a comma separated list
func columnList() string {
	return strings.Join(models.ColumnNames(), ", ")
}

// CreateTableSQL renders the DDL of a table holding the dataset
func CreateTableSQL(table string, temporary bool) string {
	var b strings.Builder
	if temporary {
		b.WriteString("CREATE TEMP TABLE ")
	} else {
		b.WriteString("CREATE TABLE IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(table))
	b.WriteString(" (\n")
	for i, col := range models.Columns {
		b.WriteString("    ")
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(col.SQLType())
		if col.Name == "id" {
			b.WriteString(" PRIMARY KEY NOT NULL")
		}
		if i < len(models.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// ensureSchema makes sure the permanent table exists with the dataset
// columns. With recreate set the table is dropped first, discarding its rows.
func ensureSchema(ctx context.Context, q Querier, d Dialect, table string, recreate bool) (created bool, err error) {
	if recreate {
		if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
			return false, fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		if _, err := q.ExecContext(ctx, CreateTableSQL(table, false)); err != nil {
			return false, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		return true, nil
	}

	existing, err := d.ExistingColumns(ctx, q, table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}

	if len(existing) == 0 {
		if _, err := q.ExecContext(ctx, CreateTableSQL(table, false)); err != nil {
			return false, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		return true, nil
	}

	want := models.ColumnNames()
	got := make([]string, len(existing))
	for i, c := range existing {
		got[i] = strings.ToLower(c)
	}
	if !slices.Equal(got, want) {
		return false, fmt.Errorf("%w: table %s has columns %v", ErrIncompatibleSchema, table, existing)
	}
	return false, nil
}

func countRows(ctx context.Context, q Querier, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
