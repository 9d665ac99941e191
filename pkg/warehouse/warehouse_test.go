package warehouse

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"redditetl/pkg/config"
	"redditetl/pkg/logger"
	"redditetl/pkg/models"
)

func testPost(id string, score int) models.Post {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Post{
		ID:                  id,
		Title:               "Post " + id,
		Score:               score,
		NumComments:         score / 2,
		Author:              "someone",
		CreatedUTC:          created,
		URL:                 "https://www.reddit.com/r/stocks/comments/" + id,
		UpvoteRatio:         0.9,
		Selftext:            "body " + id,
		Subreddit:           "stocks",
		ExtractionTimestamp: created.Add(time.Hour),
		SelftextLength:      len("body " + id),
	}
}

func writeDataset(t *testing.T, posts ...models.Post) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, posts))
	return writeRaw(t, buf.String())
}

func writeRaw(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "20240301.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func openTestLoader(t *testing.T, cfg config.WarehouseConfig) (*Loader, *sql.DB, *logger.TestLogger) {
	t.Helper()
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Table == "" {
		cfg.Table = "reddit"
	}

	db, dialect, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger()
	return NewLoader(db, dialect, cfg, log), db, log
}

func scores(t *testing.T, db *sql.DB) map[string]int {
	t.Helper()
	rows, err := db.Query("SELECT id, score FROM reddit")
	require.NoError(t, err)
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var score int
		require.NoError(t, rows.Scan(&id, &score))
		out[id] = score
	}
	require.NoError(t, rows.Err())
	return out
}

func TestLoadCreatesTable(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})
	src := writeDataset(t, testPost("a", 1), testPost("b", 2))

	res, err := loader.Load(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.SchemaCreated)
	assert.Equal(t, int64(2), res.StagingRows)
	assert.Equal(t, int64(2), res.TableRows)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, scores(t, db))

	var stagingTables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_temp_master WHERE name = 'reddit_staging'").Scan(&stagingTables))
	assert.Zero(t, stagingTables)
}

func TestLoadIsIdempotent(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})
	src := writeDataset(t, testPost("a", 1), testPost("b", 2))

	_, err := loader.Load(context.Background(), src)
	require.NoError(t, err)
	res, err := loader.Load(context.Background(), src)
	require.NoError(t, err)

	assert.False(t, res.SchemaCreated)
	assert.Equal(t, int64(2), res.TableRows)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, scores(t, db))
}

func TestLoadReplacesMatchingIDs(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	_, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 1), testPost("c", 3)))
	require.NoError(t, err)

	res, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 100), testPost("b", 2)))
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.StagingRows)
	assert.Equal(t, int64(3), res.TableRows)
	assert.Equal(t, map[string]int{"a": 100, "b": 2, "c": 3}, scores(t, db))
}

func TestLoadHeaderOnlyLeavesTableUnchanged(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	_, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 1)))
	require.NoError(t, err)

	res, err := loader.Load(context.Background(), writeDataset(t))
	require.NoError(t, err)

	assert.Zero(t, res.StagingRows)
	assert.Equal(t, int64(1), res.TableRows)
	assert.Equal(t, map[string]int{"a": 1}, scores(t, db))
}

func TestLoadTooManyRejectsRollsBack(t *testing.T) {
	loader, db, log := openTestLoader(t, config.WarehouseConfig{MaxErrors: 1})

	_, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 1)))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, []models.Post{testPost("a", 50)}))
	buf.WriteString("broken,row\n")
	buf.WriteString("another,broken,row\n")

	_, err = loader.Load(context.Background(), writeRaw(t, buf.String()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyRejects)

	assert.Equal(t, map[string]int{"a": 1}, scores(t, db))
	assert.True(t, log.HasMessage("Load error"))
	assert.True(t, log.HasMessage("rolled back"))
}

func TestLoadToleratesRejectsWithinLimit(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 5})

	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, []models.Post{testPost("a", 1)}))
	buf.WriteString("broken,row\n")

	res, err := loader.Load(context.Background(), writeRaw(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.StagingRows)
	assert.Equal(t, map[string]int{"a": 1}, scores(t, db))
}

func TestLoadRejectsBlankID(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, []models.Post{testPost("a", 1), testPost("", 2)}))
	src := writeRaw(t, buf.String())

	for i := 0; i < 2; i++ {
		res, err := loader.Load(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.StagingRows)
		assert.Equal(t, int64(1), res.TableRows)
	}

	var nullIDs int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM reddit WHERE id IS NULL OR id = ''").Scan(&nullIDs))
	assert.Zero(t, nullIDs)
	assert.Equal(t, map[string]int{"a": 1}, scores(t, db))

	sqlite := loader.dialect.(*SQLite)
	require.Len(t, sqlite.Rejected(), 1)
	assert.Equal(t, "id", sqlite.Rejected()[0].Column)
	assert.Equal(t, "missing id", sqlite.Rejected()[0].Reason)
}

func TestLoadBlankIDCountsAgainstMaxErrors(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 0})

	_, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 1), testPost("", 2)))
	assert.ErrorIs(t, err, ErrTooManyRejects)

	var tables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'reddit'").Scan(&tables))
	assert.Zero(t, tables)
}

func TestLoadFailureBeforeCopyLogsNoStaleRejections(t *testing.T) {
	loader, db, log := openTestLoader(t, config.WarehouseConfig{MaxErrors: 5})

	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, []models.Post{testPost("a", 1)}))
	buf.WriteString("broken,row\n")
	_, err := loader.Load(context.Background(), writeRaw(t, buf.String()))
	require.NoError(t, err)
	require.Len(t, loader.dialect.(*SQLite).Rejected(), 1)

	_, err = db.Exec("ALTER TABLE reddit ADD COLUMN legacy text")
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), writeDataset(t, testPost("b", 2)))
	require.ErrorIs(t, err, ErrIncompatibleSchema)

	assert.Empty(t, loader.dialect.(*SQLite).Rejected())
	assert.True(t, log.HasMessage("No rejected rows recorded"))
	assert.False(t, log.HasMessage("Rows were rejected during copy"))
}

func TestLoadIncompatibleSchema(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	_, err := db.Exec("CREATE TABLE reddit (id varchar(100), legacy text)")
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), writeDataset(t, testPost("a", 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatibleSchema)
}

func TestLoadRecreateSchema(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10, RecreateSchema: true})

	_, err := db.Exec("CREATE TABLE reddit (id varchar(100), legacy text)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO reddit (id, legacy) VALUES ('old', 'x')")
	require.NoError(t, err)

	res, err := loader.Load(context.Background(), writeDataset(t, testPost("a", 1)))
	require.NoError(t, err)
	assert.True(t, res.SchemaCreated)
	assert.Equal(t, map[string]int{"a": 1}, scores(t, db))
}

func TestLoadMissingSource(t *testing.T) {
	loader, _, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRelaxedParsing(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 10})

	long := testPost("long", 1)
	long.Title = strings.Repeat("x", 5000)
	empty := testPost("empty", 2)
	empty.Selftext = ""

	var buf bytes.Buffer
	require.NoError(t, models.WriteCSV(&buf, []models.Post{long, empty}))
	content := strings.Replace(buf.String(), "2024-03-01 12:00:00", "not a date", 1)

	_, err := loader.Load(context.Background(), writeRaw(t, content))
	require.NoError(t, err)

	var titleLen int
	var createdNull bool
	require.NoError(t, db.QueryRow("SELECT length(title), created_utc IS NULL FROM reddit WHERE id = 'long'").Scan(&titleLen, &createdNull))
	assert.Equal(t, 4000, titleLen)
	assert.True(t, createdNull)

	var selftextNull bool
	require.NoError(t, db.QueryRow("SELECT selftext IS NULL FROM reddit WHERE id = 'empty'").Scan(&selftextNull))
	assert.True(t, selftextNull)
}

func TestCheck(t *testing.T) {
	loader, db, _ := openTestLoader(t, config.WarehouseConfig{MaxErrors: 0})

	require.NoError(t, loader.Check(context.Background(), writeDataset(t, testPost("a", 1))))

	var tables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'reddit'").Scan(&tables))
	assert.Zero(t, tables)

	err := loader.Check(context.Background(), writeRaw(t, "id,title\nbroken,row\n"))
	assert.ErrorIs(t, err, ErrTooManyRejects)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.WarehouseConfig{Driver: "oracle"}, nil)
	assert.ErrorContains(t, err, "unsupported warehouse driver")
}
