// Package ratelimit paces requests to the Reddit API.
//
// Gate is a token bucket over golang.org/x/time/rate consulted before every
// listing page request. It starts at the configured requests per minute and
// slows down when the API answers 429. Throttle inserts a fixed pause after
// every N processed posts.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
