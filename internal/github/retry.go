package github

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// retryPolicy retries rate-limited calls with exponential back-off and
// jitter. Non-rate-limit errors are surfaced immediately; on exhaustion
// the rate-limit error is reclassified as a transport failure.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
	max        time.Duration

	// sleep is injectable so tests do not wait out real back-offs
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(cfg config.RetryConfig) retryPolicy {
	return retryPolicy{
		maxRetries: cfg.MaxRetries,
		base:       cfg.BaseDelay(),
		max:        cfg.MaxDelay(),
		sleep:      sleepContext,
	}
}

// sleepContext sleeps for d or until the context is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff computes the delay for a zero-based attempt:
// min(base * 2^attempt, max), perturbed by ±25% jitter.
func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base << attempt
	if d > p.max || d <= 0 {
		d = p.max
	}
	jitter := 1 + (rand.Float64()-0.5)/2 // 0.75 .. 1.25
	return time.Duration(float64(d) * jitter)
}

// do runs fn up to maxRetries times
func (p retryPolicy) do(ctx context.Context, method string, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.IsRateLimit(err) {
			return err
		}
		if attempt == p.maxRetries-1 {
			break
		}

		delay := p.backoff(attempt)
		logger.Warn("Rate limited, backing off",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if serr := p.sleep(ctx, delay); serr != nil {
			return errors.ErrTransport(method+" canceled during back-off", serr)
		}
	}
	return errors.ErrTransport("rate limit retries exhausted for "+method, err)
}
