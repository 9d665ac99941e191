package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"redditetl/pkg/config"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
)

// Result reports the row counts of a completed load
type Result struct {
	Table         string
	SourceURI     string
	StagingRows   int64
	TableRows     int64
	SchemaCreated bool
	Duration      time.Duration
}

// Loader merges a staged CSV into the permanent table. Rows whose id is
// already present are replaced, so repeated loads of the same file leave
// the table unchanged.
type Loader struct {
	db        *sql.DB
	dialect   Dialect
	table     string
	staging   string
	recreate  bool
	maxErrors int
	logger    logger.Logger
}

// NewLoader creates a loader for the configured table
func NewLoader(db *sql.DB, dialect Dialect, cfg config.WarehouseConfig, log logger.Logger) *Loader {
	table := cfg.Table
	if table == "" {
		table = "reddit"
	}
	return &Loader{
		db:        db,
		dialect:   dialect,
		table:     table,
		staging:   table + "_staging",
		recreate:  cfg.RecreateSchema,
		maxErrors: cfg.MaxErrors,
		logger:    log.WithFields(map[string]interface{}{"table": table, "dialect": dialect.Name()}),
	}
}

// Load runs the merge inside a single transaction. On failure the
// transaction is rolled back, recent load errors are logged and the
// permanent table keeps its previous contents.
func (l *Loader) Load(ctx context.Context, sourceURI string) (*Result, error) {
	started := time.Now()
	log := l.logger.WithField("source", sourceURI)
	l.resetDiagnostics()

	res, err := l.load(ctx, log, sourceURI)
	if err != nil {
		log.WithError(err).Error("Load failed, transaction rolled back")
		l.dialect.Diagnose(context.WithoutCancel(ctx), l.db, log)
		return nil, errs.Wrap(errs.ErrorTypeWarehouse, err, fmt.Sprintf("failed to load %s", sourceURI))
	}

	res.Duration = time.Since(started)
	log.InfoWithFields("Load completed", map[string]interface{}{
		"staging_rows": res.StagingRows,
		"table_rows":   res.TableRows,
		"duration":     res.Duration,
	})
	return res, nil
}

func (l *Loader) load(ctx context.Context, log logger.Logger, sourceURI string) (*Result, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	res := &Result{Table: l.table, SourceURI: sourceURI}

	res.SchemaCreated, err = ensureSchema(ctx, tx, l.dialect, l.table, l.recreate)
	if err != nil {
		return nil, err
	}
	if res.SchemaCreated {
		log.WithField("recreate", l.recreate).Info("Created table")
	}

	if _, err := tx.ExecContext(ctx, CreateTableSQL(l.staging, true)); err != nil {
		return nil, fmt.Errorf("failed to create staging table: %w", err)
	}

	log.Info("Copying into staging table")
	if err := l.dialect.Copy(ctx, tx, CopyRequest{
		Staging:   l.staging,
		SourceURI: sourceURI,
		MaxErrors: l.maxErrors,
	}); err != nil {
		return nil, err
	}

	res.StagingRows, err = countRows(ctx, tx, l.staging)
	if err != nil {
		return nil, err
	}
	log.WithField("rows", res.StagingRows).Info("Staged rows")

	if _, err := tx.ExecContext(ctx, l.dialect.DeleteMatchingSQL(l.table, l.staging)); err != nil {
		return nil, fmt.Errorf("failed to delete matching rows: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		quoteIdent(l.table), columnList(), columnList(), quoteIdent(l.staging))
	if _, err := tx.ExecContext(ctx, insert); err != nil {
		return nil, fmt.Errorf("failed to insert staged rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(l.staging)); err != nil {
		return nil, fmt.Errorf("failed to drop staging table: %w", err)
	}

	res.TableRows, err = countRows(ctx, tx, l.table)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return res, nil
}

// Check verifies that the source can be read and parsed by the warehouse
// without changing any table
func (l *Loader) Check(ctx context.Context, sourceURI string) error {
	l.resetDiagnostics()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeWarehouse, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, CreateTableSQL(l.staging, true)); err != nil {
		return errs.Wrap(errs.ErrorTypeWarehouse, err, "failed to create staging table")
	}

	err = l.dialect.Copy(ctx, tx, CopyRequest{
		Staging:   l.staging,
		SourceURI: sourceURI,
		MaxErrors: l.maxErrors,
		NoLoad:    true,
	})
	if err != nil {
		l.dialect.Diagnose(context.WithoutCancel(ctx), l.db, l.logger)
		return errs.Wrap(errs.ErrorTypeWarehouse, err, fmt.Sprintf("source %s failed the check", sourceURI))
	}

	l.logger.WithField("source", sourceURI).Info("Source is readable by the warehouse")
	return nil
}

func (l *Loader) resetDiagnostics() {
	if r, ok := l.dialect.(resetter); ok {
		r.Reset()
	}
}
