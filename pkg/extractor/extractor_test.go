package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"redditetl/pkg/config"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
	"redditetl/pkg/models"
	"redditetl/pkg/reddit"
	"redditetl/pkg/retry"
	"redditetl/pkg/storage"
)

type fakeAPI struct {
	connectErrs  []error
	connectCalls int
	submissions  []reddit.Submission
	topErr       error
	gotLimit     int
}

func (f *fakeAPI) Connect(ctx context.Context) error {
	f.connectCalls++
	if f.connectCalls <= len(f.connectErrs) {
		return f.connectErrs[f.connectCalls-1]
	}
	return nil
}

func (f *fakeAPI) Top(ctx context.Context, subreddit, timeFilter string, limit int) ([]reddit.Submission, error) {
	f.gotLimit = limit
	if f.topErr != nil {
		return nil, f.topErr
	}
	if limit > 0 && limit < len(f.submissions) {
		return f.submissions[:limit], nil
	}
	return f.submissions, nil
}

func ptr[T any](v T) *T { return &v }

func makeSubmissions(n int) []reddit.Submission {
	subs := make([]reddit.Submission, n)
	for i := range subs {
		subs[i] = reddit.Submission{
			ID:          fmt.Sprintf("id%d", i),
			Title:       fmt.Sprintf("post %d", i),
			Score:       ptr(i * 10),
			NumComments: ptr(i),
			Author:      ptr(fmt.Sprintf("user%d", i)),
			CreatedUTC:  1700000000 + float64(i),
			URL:         "https://example.com",
			UpvoteRatio: ptr(0.5),
			Over18:      ptr(i%2 == 0),
			Selftext:    ptr(fmt.Sprintf("héllo %d", i)),
			Subreddit:   "stocks",
		}
	}
	return subs
}

type harness struct {
	ext    *Extractor
	store  *storage.Manager
	sleeps []time.Duration
	log    *logger.TestLogger
}

func newHarness(t *testing.T, api API) *harness {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	h := &harness{store: store, log: logger.NewTestLogger()}
	h.ext = New(api, store, cfg, h.log)
	h.ext.SetSleep(func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	})
	h.ext.SetClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return h
}

func TestRunLimitThree(t *testing.T) {
	api := &fakeAPI{submissions: makeSubmissions(3)}
	h := newHarness(t, api)

	res, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "week", Limit: 3, Date: "20240601"})
	require.NoError(t, err)

	assert.Equal(t, 3, api.gotLimit)
	require.Len(t, res.Posts, 3)

	f, err := h.store.Open("20240601")
	require.NoError(t, err)
	defer f.Close()
	rows, err := models.ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	extractedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, row := range rows {
		assert.NotEmpty(t, row.ID)
		assert.Equal(t, len([]rune(row.Selftext)), row.SelftextLength)
		assert.Equal(t, row.Over18, row.IsNSFW)
		assert.Equal(t, extractedAt, row.ExtractionTimestamp)
	}
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rows[0].CreatedUTC)

	assert.FileExists(t, res.SummaryPath)
	assert.Equal(t, 3, res.Summary.Rows)
	assert.Empty(t, h.sleeps)
}

func TestRunRetriesConnect(t *testing.T) {
	transient := errs.New(errs.ErrorTypeNetwork, "connection reset")
	api := &fakeAPI{connectErrs: []error{transient, transient}, submissions: makeSubmissions(1)}
	h := newHarness(t, api)

	_, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.NoError(t, err)
	assert.Equal(t, 3, api.connectCalls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, h.sleeps)
}

func TestRunConnectExhausted(t *testing.T) {
	transient := errs.New(errs.ErrorTypeRateLimit, "slow down")
	api := &fakeAPI{connectErrs: []error{transient, transient, transient}}
	h := newHarness(t, api)

	_, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrAttemptsExhausted))
	assert.Equal(t, 3, api.connectCalls)
	assert.False(t, h.store.Exists("20240601"))
	assert.True(t, h.log.HasError())
}

func TestRunEmptyWritesHeader(t *testing.T) {
	h := newHarness(t, &fakeAPI{})

	res, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.NoError(t, err)
	assert.Empty(t, res.Posts)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "id,title,score,num_comments,author,created_utc,url,upvote_ratio,over_18,spoiler,stickied,selftext,subreddit,extraction_timestamp,selftext_length,is_nsfw\n", string(data))
	assert.True(t, h.log.HasMessage("No posts were extracted"))
}

func TestRunThrottles(t *testing.T) {
	h := newHarness(t, &fakeAPI{submissions: makeSubmissions(250)})

	res, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.NoError(t, err)
	assert.Len(t, res.Posts, 250)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.sleeps)
	assert.Equal(t, 2, res.Summary.Throttled)
}

func TestRunTopFailureWritesNothing(t *testing.T) {
	h := newHarness(t, &fakeAPI{topErr: errs.New(errs.ErrorTypeNotFound, "no such subreddit")})

	_, err := h.ext.Run(context.Background(), Params{Subreddit: "nope", TimeFilter: "day", Date: "20240601"})
	require.Error(t, err)
	assert.False(t, h.store.Exists("20240601"))
}

func TestRunBadShapeWritesNothing(t *testing.T) {
	subs := makeSubmissions(2)
	subs[1].ID = ""
	h := newHarness(t, &fakeAPI{submissions: subs})

	_, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
	assert.False(t, h.store.Exists("20240601"))
}

func TestRunSkipsDuplicateIDs(t *testing.T) {
	subs := makeSubmissions(3)
	subs = append(subs, subs[1])
	h := newHarness(t, &fakeAPI{submissions: subs})

	res, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.NoError(t, err)

	require.Len(t, res.Posts, 3)
	assert.Equal(t, []string{"id0", "id1", "id2"}, []string{res.Posts[0].ID, res.Posts[1].ID, res.Posts[2].ID})
	assert.Equal(t, 4, res.Summary.Fetched)
	assert.Equal(t, 1, res.Summary.Duplicates)
	assert.True(t, h.log.HasMessage("Skipped duplicate submissions"))
}

func TestRunWithoutDuplicatesReportsFetched(t *testing.T) {
	h := newHarness(t, &fakeAPI{submissions: makeSubmissions(3)})

	res, err := h.ext.Run(context.Background(), Params{Subreddit: "stocks", TimeFilter: "day", Date: "20240601"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.Fetched)
	assert.Zero(t, res.Summary.Duplicates)
	assert.False(t, h.log.HasMessage("Skipped duplicate submissions"))
}
