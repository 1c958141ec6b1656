package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
	"github.com/noah-isme/sia-krs-api/pkg/retry"
)

// ReadRetryPolicy bounds retries of idempotent reads.
type ReadRetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

type readRetrier struct {
	policy  ReadRetryPolicy
	metrics *MetricsService
	logger  *zap.Logger
}

func newReadRetrier(policy ReadRetryPolicy, metrics *MetricsService, logger *zap.Logger) readRetrier {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Delay <= 0 {
		policy.Delay = 100 * time.Millisecond
	}
	return readRetrier{policy: policy, metrics: metrics, logger: logger}
}

// isTransientReadError excludes outcomes a retry cannot change.
func isTransientReadError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case appErrors.IsDomain(err):
		return false
	}
	return true
}

func (r readRetrier) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	return retry.Do(ctx, retry.Config{
		MaxAttempts:  r.policy.Attempts,
		InitialDelay: r.policy.Delay,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		RetryIf:      isTransientReadError,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			r.metrics.RecordReadRetry(operation)
			r.logger.Warn("retrying read",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	}, fn)
}
