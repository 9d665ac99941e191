package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"redditetl/pkg/logger"
)

// IAMRoleARN builds the role ARN the cluster assumes to read the bucket
func IAMRoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// Redshift loads with a server-side COPY from S3
type Redshift struct {
	IAMRole string
}

func (r *Redshift) Name() string { return "redshift" }

func (r *Redshift) ExistingColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, strings.ToLower(table))
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// CopySQL renders the COPY statement with relaxed parsing: blanks become
// NULL, overlong values are truncated, up to maxErrors bad rows are
// skipped and date formats are auto-detected
func CopySQL(staging, sourceURI, iamRole string, maxErrors int, noLoad bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s (%s)\n", quoteIdent(staging), columnList())
	fmt.Fprintf(&b, "FROM %s\n", quoteLiteral(sourceURI))
	fmt.Fprintf(&b, "iam_role %s\n", quoteLiteral(iamRole))
	b.WriteString("IGNOREHEADER 1\n")
	b.WriteString("DELIMITER ','\n")
	b.WriteString("CSV\n")
	b.WriteString("ACCEPTINVCHARS AS ' '\n")
	b.WriteString("EMPTYASNULL\n")
	b.WriteString("TRUNCATECOLUMNS\n")
	fmt.Fprintf(&b, "MAXERROR %d\n", maxErrors)
	b.WriteString("ACCEPTANYDATE\n")
	b.WriteString("DATEFORMAT 'auto'\n")
	b.WriteString("TIMEFORMAT 'auto'\n")
	b.WriteString("TRIMBLANKS\n")
	b.WriteString("BLANKSASNULL")
	if noLoad {
		b.WriteString("\nNOLOAD")
	}
	return b.String()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (r *Redshift) Copy(ctx context.Context, tx *sql.Tx, req CopyRequest) error {
	if _, err := tx.ExecContext(ctx, CopySQL(req.Staging, req.SourceURI, r.IAMRole, req.MaxErrors, req.NoLoad)); err != nil {
		return fmt.Errorf("COPY from %s failed: %w", req.SourceURI, err)
	}
	return nil
}

func (r *Redshift) DeleteMatchingSQL(table, staging string) string {
	t, s := quoteIdent(table), quoteIdent(staging)
	return fmt.Sprintf("DELETE FROM %s USING %s WHERE %s.id = %s.id", t, s, t, s)
}

// LoadErrorsSQL reads the most recent COPY rejections
const LoadErrorsSQL = `SELECT * FROM sys_load_error_detail ORDER BY start_time DESC LIMIT 10`

func (r *Redshift) Diagnose(ctx context.Context, db *sql.DB, log logger.Logger) {
	log.Info("Checking for load errors")

	rows, err := db.QueryContext(ctx, LoadErrorsSQL)
	if err != nil {
		log.WithError(err).Error("Failed to query load errors")
		return
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		log.WithError(err).Error("Failed to read load error columns")
		return
	}

	found := 0
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.WithError(err).Error("Failed to scan load error")
			return
		}

		fields := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				fields[c] = strings.TrimSpace(values[i].String)
			}
		}
		log.ErrorWithFields("Load error", fields)
		found++
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Failed to read load errors")
		return
	}
	if found == 0 {
		log.Info("No recent load errors found")
	}
}
