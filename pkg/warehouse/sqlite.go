package warehouse

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"redditetl/pkg/logger"
	"redditetl/pkg/models"
)

// ErrTooManyRejects is returned when more rows fail to parse than allowed
var ErrTooManyRejects = errors.New("too many rejected rows")

// Opener streams the CSV found at a source URI
type Opener func(ctx context.Context, uri string) (io.ReadCloser, error)

// OpenFile opens a local path or file:// URI
func OpenFile(_ context.Context, uri string) (io.ReadCloser, error) {
	return os.Open(strings.TrimPrefix(uri, "file://"))
}

// Rejection is a source row skipped during a copy
type Rejection struct {
	Line   int
	Column string
	Value  string
	Reason string
}

// SQLite loads by parsing the CSV client-side with the same relaxed rules
// the Redshift COPY applies
type SQLite struct {
	Open Opener

	mu       sync.Mutex
	rejected []Rejection
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) ExistingColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (s *SQLite) DeleteMatchingSQL(table, staging string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE id IN (SELECT id FROM %s)", quoteIdent(table), quoteIdent(staging))
}

// Rejected returns the rows skipped by the most recent copy
func (s *SQLite) Rejected() []Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Rejection(nil), s.rejected...)
}

// Reset forgets the rejections of the previous load
func (s *SQLite) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = nil
}

func (s *SQLite) Copy(ctx context.Context, tx *sql.Tx, req CopyRequest) error {
	open := s.Open
	if open == nil {
		open = OpenFile
	}

	src, err := open(ctx, req.SourceURI)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", req.SourceURI, err)
	}
	defer src.Close()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(req.Staging), columnList(), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer stmt.Close()

	rejected, err := copyRows(ctx, src, req, func(values []any) error {
		if req.NoLoad {
			return nil
		}
		_, err := stmt.ExecContext(ctx, values...)
		return err
	})

	s.mu.Lock()
	s.rejected = rejected
	s.mu.Unlock()
	return err
}

// copyRows parses every record after the header and hands the converted
// values to insert. Rows that fail conversion or insertion are rejected.
func copyRows(ctx context.Context, r io.Reader, req CopyRequest, insert func([]any) error) ([]Rejection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var rejected []Rejection
	reject := func(rej Rejection) error {
		rejected = append(rejected, rej)
		if len(rejected) > req.MaxErrors {
			return fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyRejects, len(rejected), req.MaxErrors)
		}
		return nil
	}

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return rejected, err
		}

		record, err := cr.Read()
		if err == io.EOF {
			return rejected, nil
		}
		if err != nil {
			if rerr := reject(Rejection{Line: line, Reason: err.Error()}); rerr != nil {
				return rejected, rerr
			}
			continue
		}

		if len(record) != len(models.Columns) {
			rej := Rejection{Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", len(models.Columns), len(record))}
			if rerr := reject(rej); rerr != nil {
				return rejected, rerr
			}
			continue
		}

		values, rej := convertRecord(record)
		if rej != nil {
			rej.Line = line
			if rerr := reject(*rej); rerr != nil {
				return rejected, rerr
			}
			continue
		}

		if err := insert(values); err != nil {
			if rerr := reject(Rejection{Line: line, Column: "id", Value: fmt.Sprint(values[0]), Reason: err.Error()}); rerr != nil {
				return rejected, rerr
			}
		}
	}
}

func convertRecord(record []string) ([]any, *Rejection) {
	values := make([]any, len(models.Columns))
	for i, col := range models.Columns {
		v, err := convertField(col, record[i])
		if err != nil {
			return nil, &Rejection{Column: col.Name, Value: record[i], Reason: err.Error()}
		}
		values[i] = v
	}
	return values, nil
}

// convertField maps one CSV field to a column value. Blank fields load as
// NULL, except the id which rejects the row. Invalid UTF-8 is replaced with
// spaces, overlong text is truncated and unparseable timestamps load as NULL.
func convertField(col models.Column, raw string) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		if col.Name == "id" {
			return nil, fmt.Errorf("missing id")
		}
		return nil, nil
	}

	switch col.Type {
	case models.Integer:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid integer")
		}
		return n, nil
	case models.Float:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float")
		}
		return f, nil
	case models.Timestamp:
		t, err := dateparse.ParseIn(v, time.UTC)
		if err != nil {
			return nil, nil
		}
		return models.FormatTime(t), nil
	default:
		v = replaceInvalid(v)
		if col.Width > 0 {
			v = truncateBytes(v, col.Width)
		}
		return v, nil
	}
}

func replaceInvalid(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte(' ')
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *SQLite) Diagnose(_ context.Context, _ *sql.DB, log logger.Logger) {
	rejected := s.Rejected()
	if len(rejected) == 0 {
		log.Info("No rejected rows recorded")
		return
	}

	shown := rejected
	if len(shown) > 10 {
		shown = shown[len(shown)-10:]
	}
	for _, r := range shown {
		log.ErrorWithFields("Load error", map[string]interface{}{
			"line":   r.Line,
			"column": r.Column,
			"value":  r.Value,
			"reason": r.Reason,
		})
	}
	log.WithField("rejected", len(rejected)).Warn("Rows were rejected during copy")
}
