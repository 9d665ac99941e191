package extractor

import (
	"context"
	"fmt"
	"time"

	"redditetl/pkg/config"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
	"redditetl/pkg/metadata"
	"redditetl/pkg/models"
	"redditetl/pkg/ratelimit"
	"redditetl/pkg/retry"
	"redditetl/pkg/storage"
)

// Params selects what to extract and which run date to write
type Params struct {
	Subreddit  string
	TimeFilter string
	// Limit caps the number of posts; 0 means unbounded
	Limit int
	Date  string
}

// Result describes a completed extraction
type Result struct {
	Path        string
	SummaryPath string
	Posts       []models.Post
	Summary     metadata.Summary
}

// Extractor pulls top posts and writes them as the day's dataset
type Extractor struct {
	api          API
	store        *storage.Manager
	connect      retry.Policy
	throttle     config.ExtractConfig
	writeSummary bool
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
	logger       logger.Logger
}

// New creates an extractor from the explicit configuration
func New(api API, store *storage.Manager, cfg *config.Config, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("stage", "extract")

	return &Extractor{
		api:          api,
		store:        store,
		connect:      retry.FromConfig(cfg.Retry, log),
		throttle:     cfg.Extract,
		writeSummary: cfg.Output.WriteSummary,
		now:          time.Now,
		logger:       log,
	}
}

// SetSleep replaces every sleep the extractor performs, for tests
func (e *Extractor) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
	e.connect.Sleep = sleep
}

// SetClock replaces the clock used for the extraction timestamp
func (e *Extractor) SetClock(now func() time.Time) {
	e.now = now
}

// Run connects, fetches, normalises and saves one dataset. Nothing is
// written unless every step succeeds.
func (e *Extractor) Run(ctx context.Context, p Params) (*Result, error) {
	started := time.Now()
	logger.LogStageStart(e.logger, "extract", map[string]interface{}{
		"subreddit":   p.Subreddit,
		"time_filter": p.TimeFilter,
		"limit":       p.Limit,
		"date":        p.Date,
	})

	res, err := e.run(ctx, p)
	logger.LogStageStop(e.logger, "extract", started, err)
	return res, err
}

func (e *Extractor) run(ctx context.Context, p Params) (*Result, error) {
	e.connect.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.WithError(err).InfoWithFields("API connection failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
		})
	}
	if err := retry.Do(ctx, e.connect, e.api.Connect); err != nil {
		return nil, fmt.Errorf("failed to connect to Reddit API: %w", err)
	}

	submissions, err := e.api.Top(ctx, p.Subreddit, p.TimeFilter, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts from r/%s: %w", p.Subreddit, err)
	}

	throttle := ratelimit.NewThrottle(e.throttle.ThrottleEvery, e.throttle.ThrottlePause)
	throttle.Sleep = e.sleep

	posts := make([]models.Post, 0, len(submissions))
	seen := make(map[string]struct{}, len(submissions))
	duplicates := 0
	for i, sub := range submissions {
		if err := throttle.Tick(ctx); err != nil {
			return nil, fmt.Errorf("extraction interrupted: %w", err)
		}
		if i > 0 && e.throttle.ThrottleEvery > 0 && i%e.throttle.ThrottleEvery == 0 {
			logger.LogExtractProgress(e.logger, p.Subreddit, i, p.Limit)
		}

		if sub.ID == "" {
			err := errs.New(errs.ErrorTypeParsing, fmt.Sprintf("submission %d has no id", i+1))
			e.logger.WithError(err).Error("Unexpected submission shape")
			return nil, err
		}
		// rankings shift while paging, so a post can appear twice
		if _, dup := seen[sub.ID]; dup {
			e.logger.WithField("id", sub.ID).Debug("Skipping duplicate submission")
			duplicates++
			continue
		}
		seen[sub.ID] = struct{}{}
		posts = append(posts, ToPost(sub))
	}

	if duplicates > 0 {
		e.logger.WarnWithFields("Skipped duplicate submissions", map[string]interface{}{
			"fetched":    len(submissions),
			"duplicates": duplicates,
			"rows":       len(posts),
		})
	}

	extractedAt := e.now().UTC().Truncate(time.Second)
	for i := range posts {
		Finalize(&posts[i], extractedAt)
	}

	if len(posts) == 0 {
		e.logger.WarnWithFields("No posts were extracted", map[string]interface{}{
			"subreddit": p.Subreddit,
		})
	}

	path, err := e.store.SaveDataset(p.Date, posts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to save dataset")
	}

	summary := metadata.Summarize(posts)
	summary.Date = p.Date
	summary.Subreddit = p.Subreddit
	summary.TimeFilter = p.TimeFilter
	summary.Limit = p.Limit
	summary.ExtractedAt = extractedAt
	summary.Throttled = throttle.Pauses()
	summary.Fetched = len(submissions)
	summary.Duplicates = duplicates

	res := &Result{Path: path, Posts: posts, Summary: summary}

	if e.writeSummary {
		data, err := summary.Marshal()
		if err == nil {
			res.SummaryPath, err = e.store.WriteFile(metadata.FileName(p.Date), data)
		}
		if err != nil {
			// the dataset is already in place; a missing sidecar is not fatal
			e.logger.WithError(err).Warn("Failed to write summary")
		}
	}

	logger.LogMetrics(e.logger, "extract", summary.Fields())
	e.logger.InfoWithFields("Saved dataset", map[string]interface{}{
		"path": path,
		"rows": len(posts),
	})

	return res, nil
}
