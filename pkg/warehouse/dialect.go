package warehouse

import (
	"context"
	"database/sql"

	"redditetl/pkg/logger"
)

// CopyRequest describes one bulk load into the staging table
type CopyRequest struct {
	Staging   string
	SourceURI string
	MaxErrors int
	// NoLoad validates the source without keeping any rows
	NoLoad bool
}

// Dialect captures the statements that differ between warehouses
type Dialect interface {
	Name() string
	// ExistingColumns lists a table's columns in order, empty if it is absent
	ExistingColumns(ctx context.Context, q Querier, table string) ([]string, error)
	// Copy bulk-loads the source CSV into the staging table
	Copy(ctx context.Context, tx *sql.Tx, req CopyRequest) error
	// DeleteMatchingSQL removes rows of table whose id appears in staging
	DeleteMatchingSQL(table, staging string) string
	// Diagnose logs recent load errors; it runs after rollback and never fails
	Diagnose(ctx context.Context, db *sql.DB, log logger.Logger)
}

// resetter is implemented by dialects that keep per-load diagnostics
type resetter interface {
	Reset()
}
