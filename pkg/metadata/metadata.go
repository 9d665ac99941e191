package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"redditetl/pkg/models"
)

// Summary describes one extracted dataset
type Summary struct {
	// Run parameters
	Date       string `json:"date"`
	Subreddit  string `json:"subreddit"`
	TimeFilter string `json:"time_filter"`
	Limit      int    `json:"limit"`

	// Fetched counts the submissions the API returned; Duplicates of those
	// were dropped because their id had already been seen
	Fetched    int `json:"fetched"`
	Duplicates int `json:"duplicates"`

	// Row statistics
	Rows           int        `json:"rows"`
	AvgScore       float64    `json:"avg_score"`
	MaxScore       int        `json:"max_score"`
	AvgComments    float64    `json:"avg_comments"`
	MaxComments    int        `json:"max_comments"`
	NSFW           int        `json:"nsfw"`
	Spoilers       int        `json:"spoilers"`
	Stickied       int        `json:"stickied"`
	DeletedAuthors int        `json:"deleted_authors"`
	EmptySelftext  int        `json:"empty_selftext"`
	AvgSelftextLen float64    `json:"avg_selftext_length"`
	OldestCreated  *time.Time `json:"oldest_created,omitempty"`
	NewestCreated  *time.Time `json:"newest_created,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
	Throttled   int       `json:"throttle_pauses"`
}

// Summarize computes statistics over posts
func Summarize(posts []models.Post) Summary {
	s := Summary{Rows: len(posts)}
	if len(posts) == 0 {
		return s
	}

	var scoreSum, commentSum, selftextSum int
	s.MaxScore = posts[0].Score
	s.MaxComments = posts[0].NumComments

	for i := range posts {
		p := &posts[i]
		scoreSum += p.Score
		commentSum += p.NumComments
		selftextSum += p.SelftextLength

		if p.Score > s.MaxScore {
			s.MaxScore = p.Score
		}
		if p.NumComments > s.MaxComments {
			s.MaxComments = p.NumComments
		}
		if p.IsNSFW {
			s.NSFW++
		}
		if p.Spoiler {
			s.Spoilers++
		}
		if p.Stickied {
			s.Stickied++
		}
		if p.Author == models.DeletedAuthor {
			s.DeletedAuthors++
		}
		if p.Selftext == "" {
			s.EmptySelftext++
		}

		if !p.CreatedUTC.IsZero() {
			created := p.CreatedUTC
			if s.OldestCreated == nil || created.Before(*s.OldestCreated) {
				s.OldestCreated = &created
			}
			if s.NewestCreated == nil || created.After(*s.NewestCreated) {
				s.NewestCreated = &created
			}
		}
	}

	n := float64(len(posts))
	s.AvgScore = float64(scoreSum) / n
	s.AvgComments = float64(commentSum) / n
	s.AvgSelftextLen = float64(selftextSum) / n
	s.ExtractedAt = posts[0].ExtractionTimestamp

	return s
}

// FileName is the sidecar name for a run date
func FileName(date string) string {
	return date + ".summary.json"
}

// Marshal renders the summary as indented JSON
func (s *Summary) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	return data, nil
}

// Load reads a summary sidecar
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &s, nil
}

// Fields returns the headline numbers for structured logging
func (s *Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"rows":         s.Rows,
		"fetched":      s.Fetched,
		"duplicates":   s.Duplicates,
		"avg_score":    fmt.Sprintf("%.2f", s.AvgScore),
		"max_score":    s.MaxScore,
		"avg_comments": fmt.Sprintf("%.2f", s.AvgComments),
		"max_comments": s.MaxComments,
	}
}
