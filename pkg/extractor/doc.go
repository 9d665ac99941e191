// Package extractor implements the first pipeline stage: it connects to the
// Reddit API under a fixed-delay retry policy, fetches a subreddit's top
// posts, maps each submission onto a models.Post through explicit typed
// field accessors and writes the dataset for the run date.
package extractor
