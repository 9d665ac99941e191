package models

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost() Post {
	return Post{
		ID:                  "abc123",
		Title:               "Markets, \"today\"",
		Score:               42,
		NumComments:         7,
		Author:              "trader",
		CreatedUTC:          time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		URL:                 "https://reddit.com/r/stocks/abc123",
		UpvoteRatio:         0.93,
		Over18:              true,
		Selftext:            "line one\nline two",
		Subreddit:           "stocks",
		ExtractionTimestamp: time.Date(2024, 3, 2, 0, 0, 5, 0, time.UTC),
		SelftextLength:      17,
		IsNSFW:              true,
	}
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{
		"id", "title", "score", "num_comments", "author", "created_utc", "url",
		"upvote_ratio", "over_18", "spoiler", "stickied", "selftext", "subreddit",
		"extraction_timestamp", "selftext_length", "is_nsfw",
	}, ColumnNames())
}

func TestSQLTypes(t *testing.T) {
	types := map[string]string{}
	for _, c := range Columns {
		types[c.Name] = c.SQLType()
	}
	assert.Equal(t, "varchar(100)", types["id"])
	assert.Equal(t, "varchar(65535)", types["selftext"])
	assert.Equal(t, "int", types["score"])
	assert.Equal(t, "float", types["upvote_ratio"])
	assert.Equal(t, "timestamp", types["created_utc"])
	assert.Equal(t, "varchar(10)", types["over_18"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Post{samplePost()}))

	lines := strings.SplitN(buf.String(), "\n", 2)
	assert.Equal(t, strings.Join(ColumnNames(), ","), lines[0])
	assert.Contains(t, lines[1], "abc123,\"Markets, \"\"today\"\"\",42,7,trader,2024-03-01 12:30:00,")
	assert.Contains(t, lines[1], ",0.93,True,False,False,")
}

func TestWriteCSVEmptyKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(ColumnNames(), ",")+"\n", buf.String())

	posts, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestReadCSV(t *testing.T) {
	var buf bytes.Buffer
	want := samplePost()
	require.NoError(t, WriteCSV(&buf, []Post{want}))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestReadCSVHeaderMismatch(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,title\n1,x\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeaderMismatch))
}

func TestReadCSVBadValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Post{samplePost()}))
	broken := strings.Replace(buf.String(), ",42,", ",many,", 1)

	_, err := ReadCSV(strings.NewReader(broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "score")
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"True", "true", "1", "T"} {
		b, err := ParseBool(s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"False", "0", ""} {
		b, err := ParseBool(s)
		require.NoError(t, err)
		assert.False(t, b, s)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", FormatTime(time.Time{}))
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-01-02 02:04:05", FormatTime(ts))
}

func TestParseRunDate(t *testing.T) {
	now := time.Date(2024, 7, 9, 23, 0, 0, 0, time.Local)

	got, err := ParseRunDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "20240709", got)

	got, err = ParseRunDate("20231231", now)
	require.NoError(t, err)
	assert.Equal(t, "20231231", got)

	for _, bad := range []string{"2023-12-31", "20231332", "2023123", "yesterday"} {
		_, err := ParseRunDate(bad, now)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "20231231.csv", DatasetFile("20231231"))
}
