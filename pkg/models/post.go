package models

import (
	"time"
)

// DeletedAuthor is the placeholder stored for removed or deleted accounts
const DeletedAuthor = "[deleted]"

// TimestampLayout is how timestamps are rendered in CSV files and parsed back
const TimestampLayout = "2006-01-02 15:04:05"

// Post is one extracted submission, one row of the dataset
type Post struct {
	ID                  string
	Title               string
	Score               int
	NumComments         int
	Author              string
	CreatedUTC          time.Time
	URL                 string
	UpvoteRatio         float64
	Over18              bool
	Spoiler             bool
	Stickied            bool
	Selftext            string
	Subreddit           string
	ExtractionTimestamp time.Time
	SelftextLength      int
	IsNSFW              bool
}
