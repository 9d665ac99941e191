package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
	"redditetl/pkg/config"
)

// RedshiftDSN renders the connection URL for a Redshift cluster
func RedshiftDSN(cfg config.WarehouseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open connects to the configured warehouse and returns the matching
// dialect. The opener is used by the sqlite driver to read source CSVs.
func Open(ctx context.Context, cfg config.WarehouseConfig, opener Opener) (*sql.DB, Dialect, error) {
	switch cfg.Driver {
	case "redshift":
		db, err := openRedshift(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, &Redshift{IAMRole: IAMRoleARN(cfg.AccountID, cfg.RoleName)}, nil
	case "sqlite":
		db, err := openSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, &SQLite{Open: opener}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}

func openRedshift(ctx context.Context, cfg config.WarehouseConfig) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(RedshiftDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection settings: %w", err)
	}
	// Redshift does not support the extended protocol's statement caching
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// temp staging tables live on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	return db, nil
}
