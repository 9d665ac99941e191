package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
	"redditetl/pkg/retry"
)

// fakeAPI serves a token endpoint and a top listing of total posts
type fakeAPI struct {
	t           *testing.T
	total       int
	tokenStatus int
	pageStatus  []int // per-request status overrides, consumed in order
	tokenCalls  atomic.Int32
	pageCalls   atomic.Int32
	agents      []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		f.agents = append(f.agents, r.Header.Get("User-Agent"))
		id, secret, ok := r.BasicAuth()
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		if !ok || id != "id" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/stocks/top", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.pageCalls.Add(1))
		if n <= len(f.pageStatus) && f.pageStatus[n-1] != http.StatusOK {
			w.WriteHeader(f.pageStatus[n-1])
			return
		}
		assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(f.t, "week", r.URL.Query().Get("t"))

		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			start, _ = strconv.Atoi(after[3:])
		}
		size, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var listing Listing
		listing.Kind = "Listing"
		end := start + size
		if end > f.total {
			end = f.total
		}
		for i := start; i < end; i++ {
			score := i
			listing.Data.Children = append(listing.Data.Children, Thing{
				Kind: "t3",
				Data: Submission{ID: fmt.Sprintf("p%d", i), Title: "post", Score: &score},
			})
		}
		if end < f.total {
			listing.Data.After = fmt.Sprintf("t3_%d", end)
		}
		require.NoError(f.t, json.NewEncoder(w).Encode(listing))
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "redditetl-test/1.0",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/api/v1/access_token",
		Timeout:      5 * time.Second,
	}, nil, logger.NewNopLogger())
	c.SetPagePolicy(retry.Policy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})
	return c, srv
}

func TestConnect(t *testing.T) {
	api := &fakeAPI{t: t}
	c, _ := newTestClient(t, api)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, int32(1), api.tokenCalls.Load())
	assert.Equal(t, []string{"redditetl-test/1.0"}, api.agents)
}

func TestConnectRejected(t *testing.T) {
	api := &fakeAPI{t: t, tokenStatus: http.StatusUnauthorized}
	c, _ := newTestClient(t, api)

	err := c.Connect(context.Background())
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	assert.False(t, retry.DefaultRetryIf(err))
}

func TestConnectServerErrorIsRetryable(t *testing.T) {
	api := &fakeAPI{t: t, tokenStatus: http.StatusServiceUnavailable}
	c, _ := newTestClient(t, api)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, retry.DefaultRetryIf(err))
}

func TestTopBeforeConnect(t *testing.T) {
	c, _ := newTestClient(t, &fakeAPI{t: t})
	_, err := c.Top(context.Background(), "stocks", "week", 10)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTopPaginates(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		limit     int
		wantPosts int
		wantPages int32
	}{
		{"limit within one page", 250, 3, 3, 1},
		{"limit across pages", 250, 150, 150, 2},
		{"unbounded", 250, 0, 250, 3},
		{"limit above available", 40, 1000, 40, 1},
		{"empty subreddit", 0, 10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{t: t, total: tt.total}
			c, _ := newTestClient(t, api)
			require.NoError(t, c.Connect(context.Background()))

			posts, err := c.Top(context.Background(), "r/stocks", "week", tt.limit)
			require.NoError(t, err)
			assert.Len(t, posts, tt.wantPosts)
			assert.Equal(t, tt.wantPages, api.pageCalls.Load())
			if tt.wantPosts > 0 {
				assert.Equal(t, "p0", posts[0].ID)
			}
		})
	}
}

func TestTopRetriesTransientPage(t *testing.T) {
	api := &fakeAPI{t: t, total: 5, pageStatus: []int{http.StatusBadGateway, http.StatusTooManyRequests}}
	c, _ := newTestClient(t, api)
	require.NoError(t, c.Connect(context.Background()))

	posts, err := c.Top(context.Background(), "stocks", "week", 5)
	require.NoError(t, err)
	assert.Len(t, posts, 5)
	assert.Equal(t, int32(3), api.pageCalls.Load())
}

type recordingLimiter struct {
	waits atomic.Int32
	slows atomic.Int32
}

func (l *recordingLimiter) Allow() bool { return true }
func (l *recordingLimiter) Reset()      {}
func (l *recordingLimiter) Slow()       { l.slows.Add(1) }
func (l *recordingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func TestTopSlowsDownOnTooManyRequests(t *testing.T) {
	api := &fakeAPI{t: t, total: 5, pageStatus: []int{http.StatusTooManyRequests}}
	c, _ := newTestClient(t, api)
	lim := &recordingLimiter{}
	c.limiter = lim
	require.NoError(t, c.Connect(context.Background()))

	posts, err := c.Top(context.Background(), "stocks", "week", 5)
	require.NoError(t, err)
	assert.Len(t, posts, 5)
	assert.Equal(t, int32(2), lim.waits.Load())
	assert.Equal(t, int32(1), lim.slows.Load())
}

func TestTopNotFoundIsFatal(t *testing.T) {
	api := &fakeAPI{t: t, pageStatus: []int{http.StatusNotFound}}
	c, _ := newTestClient(t, api)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.Top(context.Background(), "stocks", "week", 5)
	require.Error(t, err)
	assert.Equal(t, int32(1), api.pageCalls.Load())
}

func TestTopInvalidTimeFilter(t *testing.T) {
	c, _ := newTestClient(t, &fakeAPI{t: t})
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.Top(context.Background(), "stocks", "fortnight", 5)
	require.Error(t, err)
}
