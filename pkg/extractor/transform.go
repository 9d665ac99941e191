package extractor

import (
	"math"
	"time"
	"unicode/utf8"

	"redditetl/pkg/models"
	"redditetl/pkg/reddit"
)

// ToPost maps an API submission onto a dataset row. Missing numeric and
// flag values become zero values and a missing author becomes
// models.DeletedAuthor.
func ToPost(s reddit.Submission) models.Post {
	p := models.Post{
		ID:         s.ID,
		Title:      s.Title,
		Author:     models.DeletedAuthor,
		CreatedUTC: epochToTime(s.CreatedUTC),
		URL:        s.URL,
		Spoiler:    s.Spoiler,
		Stickied:   s.Stickied,
		Subreddit:  s.Subreddit,
	}

	if s.Score != nil {
		p.Score = *s.Score
	}
	if s.NumComments != nil {
		p.NumComments = *s.NumComments
	}
	if s.Author != nil && *s.Author != "" {
		p.Author = *s.Author
	}
	if s.UpvoteRatio != nil {
		p.UpvoteRatio = *s.UpvoteRatio
	}
	if s.Over18 != nil {
		p.Over18 = *s.Over18
	}
	if s.Selftext != nil {
		p.Selftext = *s.Selftext
	}

	return p
}

// Finalize fills the derived columns and stamps the extraction time
func Finalize(p *models.Post, extractedAt time.Time) {
	p.SelftextLength = utf8.RuneCountInString(p.Selftext)
	p.IsNSFW = p.Over18
	p.ExtractionTimestamp = extractedAt
}

func epochToTime(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC().Truncate(time.Second)
}
