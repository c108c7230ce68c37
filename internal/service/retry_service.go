package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/logger"

	"github.com/rs/zerolog"
)

// ErrRetriesExhausted is wrapped into the error returned when every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy controls attempt count and exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration // 0 = attempts are bounded only by the caller's ctx
}

// DefaultRetryPolicy is 3 attempts, 1s initial delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2}
}

// RetryPolicyFromConfig maps the retry config section onto a policy.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay,
		Multiplier:     cfg.Multiplier,
		AttemptTimeout: cfg.AttemptTimeout,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Delay returns the wait before the given retry (attempt is 1-based and refers
// to the attempt that just failed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
}

// Retrier runs operations under a RetryPolicy and records attempts in metrics.
type Retrier struct {
	policy  RetryPolicy
	metrics *Metrics
	log     zerolog.Logger
}

// NewRetrier creates a Retrier.
func NewRetrier(policy RetryPolicy, metrics *Metrics, log zerolog.Logger) *Retrier {
	return &Retrier{
		policy:  policy,
		metrics: metrics,
		log:     logger.Component(log, "retry"),
	}
}

// Policy returns the retrier's policy.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// IsRetryable reports whether err is worth another attempt. Signature problems,
// insufficient on-chain funds, anything wrapping domain.ErrNonRetryable and
// caller cancellation are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrInsufficientOnChainFunds),
		errors.Is(err, domain.ErrNonRetryable),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. Backoff sleeps end early when ctx is done.
func Retry[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		v, err := runAttempt(ctx, r.policy.AttemptTimeout, op)
		if err == nil {
			r.metrics.RetryAttempts.WithLabelValues(name, "success").Inc()
			r.metrics.RetryOutcomes.WithLabelValues(name, "success").Inc()
			if attempt > 1 {
				r.log.Info().Str("operation", name).Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return v, nil
		}
		lastErr = err
		r.metrics.RetryAttempts.WithLabelValues(name, "error").Inc()

		// A parent deadline is as final as an explicit cancel.
		if !IsRetryable(err) || ctx.Err() != nil {
			r.metrics.RetryOutcomes.WithLabelValues(name, "non_retryable").Inc()
			return zero, err
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		r.log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("attempt failed, retrying")

		if err := sleepCtx(ctx, delay); err != nil {
			r.metrics.RetryOutcomes.WithLabelValues(name, "cancelled").Inc()
			return zero, fmt.Errorf("%s: %w (last error: %w)", name, err, lastErr)
		}
	}

	r.metrics.RetryOutcomes.WithLabelValues(name, "exhausted").Inc()
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, r.policy.MaxAttempts, lastErr)
}

// RetryWithFallback runs primary under Retry and, if that fails, fallback once.
// When both fail the returned error wraps the fallback's error. A nil fallback
// returns the primary error unchanged.
func RetryWithFallback[T any](ctx context.Context, r *Retrier, name string, primary, fallback func(ctx context.Context) (T, error)) (T, error) {
	v, err := Retry(ctx, r, name, primary)
	if err == nil {
		return v, nil
	}
	if fallback == nil || ctx.Err() != nil {
		return v, err
	}

	r.log.Warn().Err(err).Str("operation", name).Msg("primary exhausted, trying fallback")

	v, fbErr := runAttempt(ctx, r.policy.AttemptTimeout, fallback)
	if fbErr == nil {
		r.metrics.RetryAttempts.WithLabelValues(name, "fallback_success").Inc()
		r.metrics.RetryOutcomes.WithLabelValues(name, "fallback_success").Inc()
		return v, nil
	}
	r.metrics.RetryAttempts.WithLabelValues(name, "fallback_error").Inc()
	r.metrics.RetryOutcomes.WithLabelValues(name, "fallback_failed").Inc()

	var zero T
	return zero, fmt.Errorf("%s: fallback failed: %w (primary: %v)", name, fbErr, err)
}

// runAttempt bounds a single attempt by the policy's AttemptTimeout.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
