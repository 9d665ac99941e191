package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the warehouse type family of a column
type ColumnType int

const (
	Varchar ColumnType = iota
	Integer
	Float
	Timestamp
)

// Column binds one dataset column to typed accessors on Post
type Column struct {
	Name string
	Type ColumnType
	// Width is the maximum length for Varchar columns
	Width int
	Get   func(p *Post) string
	Set   func(p *Post, v string) error
}

// SQLType returns the DDL type of the column
func (c Column) SQLType() string {
	switch c.Type {
	case Integer:
		return "int"
	case Float:
		return "float"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("varchar(%d)", c.Width)
	}
}

// Columns is the fixed, ordered column list of the dataset. The CSV header,
// CSV rows and warehouse schema are all derived from it.
var Columns = []Column{
	varcharCol("id", 100, func(p *Post) *string { return &p.ID }),
	varcharCol("title", 4000, func(p *Post) *string { return &p.Title }),
	intCol("score", func(p *Post) *int { return &p.Score }),
	intCol("num_comments", func(p *Post) *int { return &p.NumComments }),
	varcharCol("author", 100, func(p *Post) *string { return &p.Author }),
	timeCol("created_utc", func(p *Post) *time.Time { return &p.CreatedUTC }),
	varcharCol("url", 2000, func(p *Post) *string { return &p.URL }),
	floatCol("upvote_ratio", func(p *Post) *float64 { return &p.UpvoteRatio }),
	boolCol("over_18", func(p *Post) *bool { return &p.Over18 }),
	boolCol("spoiler", func(p *Post) *bool { return &p.Spoiler }),
	boolCol("stickied", func(p *Post) *bool { return &p.Stickied }),
	varcharCol("selftext", 65535, func(p *Post) *string { return &p.Selftext }),
	varcharCol("subreddit", 100, func(p *Post) *string { return &p.Subreddit }),
	timeCol("extraction_timestamp", func(p *Post) *time.Time { return &p.ExtractionTimestamp }),
	intCol("selftext_length", func(p *Post) *int { return &p.SelftextLength }),
	boolCol("is_nsfw", func(p *Post) *bool { return &p.IsNSFW }),
}

// ColumnNames returns the names of Columns in order
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// FormatBool renders a flag the way the warehouse stores it
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseBool accepts True/False in any case as well as 1/0
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t":
		return true, nil
	case "false", "0", "f", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// FormatTime renders a timestamp in TimestampLayout; the zero time is blank
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func varcharCol(name string, width int, field func(*Post) *string) Column {
	return Column{
		Name:  name,
		Type:  Varchar,
		Width: width,
		Get:   func(p *Post) string { return *field(p) },
		Set: func(p *Post, v string) error {
			*field(p) = v
			return nil
		},
	}
}

func intCol(name string, field func(*Post) *int) Column {
	return Column{
		Name: name,
		Type: Integer,
		Get:  func(p *Post) string { return strconv.Itoa(*field(p)) },
		Set: func(p *Post, v string) error {
			if v == "" {
				*field(p) = 0
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(p) = n
			return nil
		},
	}
}

func floatCol(name string, field func(*Post) *float64) Column {
	return Column{
		Name: name,
		Type: Float,
		Get:  func(p *Post) string { return strconv.FormatFloat(*field(p), 'f', -1, 64) },
		Set: func(p *Post, v string) error {
			if v == "" {
				*field(p) = 0
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(p) = f
			return nil
		},
	}
}

func boolCol(name string, field func(*Post) *bool) Column {
	return Column{
		Name:  name,
		Type:  Varchar,
		Width: 10,
		Get:   func(p *Post) string { return FormatBool(*field(p)) },
		Set: func(p *Post, v string) error {
			b, err := ParseBool(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(p) = b
			return nil
		},
	}
}

func timeCol(name string, field func(*Post) *time.Time) Column {
	return Column{
		Name: name,
		Type: Timestamp,
		Get:  func(p *Post) string { return FormatTime(*field(p)) },
		Set: func(p *Post, v string) error {
			if v == "" {
				*field(p) = time.Time{}
				return nil
			}
			t, err := time.ParseInLocation(TimestampLayout, v, time.UTC)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(p) = t
			return nil
		},
	}
}
