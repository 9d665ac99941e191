// Package reddit is a minimal app-only client for the Reddit API.
//
// Connect performs the OAuth2 client credentials grant; Top walks the
// paginated top listing of a subreddit, pacing requests through a
// ratelimit.Limiter and retrying transient page failures.
package reddit
