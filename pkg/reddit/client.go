package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
	"redditetl/pkg/ratelimit"
	"redditetl/pkg/retry"
)

// ErrNotConnected is returned when Top is called before Connect
var ErrNotConnected = errors.New("reddit client is not connected")

// ClientConfig holds what the client needs to reach the API
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
	// PageAttempts bounds retries of a single listing page
	PageAttempts int
}

// Client is an app-only (client credentials) Reddit API client
type Client struct {
	cfg        ClientConfig
	base       *http.Client
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     logger.Logger
	pagePolicy retry.Policy
}

// NewClient creates a client; Connect must succeed before fetching
func NewClient(cfg ClientConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageAttempts <= 0 {
		cfg.PageAttempts = 3
	}

	return &Client{
		cfg: cfg,
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &userAgentTransport{agent: cfg.UserAgent, next: http.DefaultTransport},
		},
		limiter:    limiter,
		logger:     log.WithField("component", "reddit"),
		pagePolicy: retry.Transient(cfg.PageAttempts, log),
	}
}

// SetPagePolicy overrides the retry policy for listing pages
func (c *Client) SetPagePolicy(p retry.Policy) {
	c.pagePolicy = p
}

// userAgentTransport stamps every request with the configured User-Agent,
// which the API requires on token and listing requests alike
type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

// Connect obtains an access token with the client credentials grant
func (c *Client) Connect(ctx context.Context) error {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.base)

	c.logger.Debug("requesting access token")
	token, err := cc.Token(tokenCtx)
	if err != nil {
		return classifyTokenError(err)
	}

	// refreshes must outlive the connect call's context
	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	source := oauth2.ReuseTokenSource(token, cc.TokenSource(refreshCtx))
	c.httpClient = oauth2.NewClient(refreshCtx, source)
	c.httpClient.Timeout = c.cfg.Timeout

	c.logger.InfoWithFields("connected to Reddit API", map[string]interface{}{
		"token_expiry": token.Expiry,
	})
	return nil
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		e := errs.FromStatusCode(retrieveErr.Response.StatusCode, "token request rejected")
		e.Err = err
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Wrap(errs.ErrorTypeNetwork, err, "token request failed")
}

// Top fetches the top submissions of a subreddit within timeFilter. A limit
// of zero or less pages until the listing is exhausted.
func (c *Client) Top(ctx context.Context, subreddit, timeFilter string, limit int) ([]Submission, error) {
	if c.httpClient == nil {
		return nil, ErrNotConnected
	}
	if !ValidTimeFilter(timeFilter) {
		return nil, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid time filter %q", timeFilter))
	}
	subreddit = SanitizeSubreddit(subreddit)

	var (
		submissions []Submission
		after       string
		page        int
	)

	for {
		pageSize := MaxPageSize
		if limit > 0 {
			remaining := limit - len(submissions)
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		page++
		url := TopURL(c.cfg.BaseURL, subreddit, timeFilter, pageSize, after)
		listing, err := retry.DoWithResult(ctx, c.pagePolicy, func(ctx context.Context) (*Listing, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			return c.fetchListing(ctx, url)
		})
		if err != nil {
			c.logger.WithError(err).ErrorWithFields("failed to fetch listing page", map[string]interface{}{
				"subreddit": subreddit,
				"page":      page,
			})
			return nil, err
		}

		for _, child := range listing.Data.Children {
			submissions = append(submissions, child.Data)
			if limit > 0 && len(submissions) >= limit {
				break
			}
		}

		c.logger.DebugWithFields("fetched listing page", map[string]interface{}{
			"subreddit": subreddit,
			"page":      page,
			"posts":     len(listing.Data.Children),
			"total":     len(submissions),
		})

		after = listing.Data.After
		if after == "" || len(listing.Data.Children) == 0 {
			break
		}
	}

	return submissions, nil
}

func (c *Client) fetchListing(ctx context.Context, url string) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "listing request failed")
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			logger.LogRateLimit(c.logger, req.URL.Path, 0)
			if s, ok := c.limiter.(ratelimit.Slower); ok {
				s.Slow()
			}
		}
		return nil, errs.FromStatusCode(resp.StatusCode, fmt.Sprintf("listing request returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	var listing Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse listing", map[string]interface{}{
			"url":          url,
			"body_preview": preview,
		})
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse listing")
	}
	if listing.Kind != "" && listing.Kind != "Listing" {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("unexpected response kind %q", listing.Kind))
	}

	return &listing, nil
}
