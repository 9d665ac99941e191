package extractor

import (
	"context"

	"redditetl/pkg/reddit"
)

// API defines the Reddit operations the extractor needs
type API interface {
	Connect(ctx context.Context) error
	Top(ctx context.Context, subreddit, timeFilter string, limit int) ([]reddit.Submission, error)
}
