package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// RetryPolicy is the single retry strategy shared by topic scraping, browser
// navigation, and HTTP fetches.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first (>= 1)
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Cap for any single delay
	Multiplier   float64       // 1 = fixed backoff, 2 = doubling
	Jitter       bool          // +/- 10% randomization
}

// PolicyFromConfig builds a RetryPolicy from the retry section of the config
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		Jitter:       cfg.Jitter,
	}
}

// WithAttempts returns a copy of p with a different attempt budget
func (p RetryPolicy) WithAttempts(n int) RetryPolicy {
	p.MaxAttempts = n
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Delay returns the wait before the given attempt (attempt 1 has no delay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt-2)))
	if p.MaxDelay > 0 && (delay <= 0 || delay > p.MaxDelay) {
		delay = p.MaxDelay
	}

	if p.Jitter && delay > 0 {
		if jitterRange := int64(delay) / 5; jitterRange > 0 {
			delay += time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
		}
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Do runs op until it succeeds, the attempt budget is spent, ctx is done, or op
// returns a Permanent error. Exhaustion yields ErrRetryFailed wrapping the last error.
func (p RetryPolicy) Do(ctx context.Context, log *logrus.Entry, op func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w after error: %w", err, lastErr)
			}
			return err
		}

		if delay := p.Delay(attempt); delay > 0 {
			log.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": maxAttempts, "delay": delay}).Warn("Retrying...")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return lastErr
			}
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		log.WithField("attempt", attempt).Warnf("Attempt failed: %v", lastErr)
	}

	log.Errorf("All %d attempts failed. Last error: %v", maxAttempts, lastErr)
	return fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
