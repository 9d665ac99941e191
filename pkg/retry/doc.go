// Package retry runs operations under an explicit retry Policy.
//
// A Policy bundles the attempt budget, the backoff between attempts and the
// predicate deciding which errors are transient:
//
//	p := retry.FromConfig(cfg.Retry, log) // 3 attempts, 5s apart by default
//	client, err := retry.DoWithResult(ctx, p, func(ctx context.Context) (*reddit.Client, error) {
//		return reddit.Connect(ctx, opts)
//	})
//
// Errors from redditetl/pkg/errors are retried only when their type is
// retryable; context cancellation is never retried.
package retry
