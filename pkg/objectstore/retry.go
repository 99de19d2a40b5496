package objectstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures WithRetry's exponential backoff, matching spec §9's
// retry(op, {maxAttempts, initialDelay, backoffMultiplier, maxDelay}) helper.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryConfig is used by WithRetry when cfg.MaxAttempts <= 0.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       5,
	InitialDelay:      100 * time.Millisecond,
	BackoffMultiplier: 2,
	MaxDelay:          5 * time.Second,
}

// WithRetry retries op with exponential backoff until it succeeds or
// MaxAttempts is exhausted. It is meant for idempotent object-store calls
// (gets, non-CAS puts, deletes) — never for the transaction log's CAS
// append, which must recompute nextVersion() between attempts rather than
// blindly repeat the same write (see txlog.Append).
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.Multiplier = cfg.BackoffMultiplier
	b.MaxInterval = cfg.MaxDelay
	b.MaxElapsedTime = 0 // bounded by MaxAttempts instead of wall-clock

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx))
}
