// Package retry provides backoff policies for transient failures such as
// link preview fetches and object store writes. Compilation itself is never
// retried.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docfold/internal/config"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Policy encapsulates retry/backoff settings. It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy returns exponential backoff from 500ms capped at 5s, 2 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: 500 * time.Millisecond, Max: 5 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the link preview retry policy.
func FromConfig(c config.LinkPreviewConfig) Policy {
	return NewPolicy(c.RetryBackoff, c.RetryInitial, c.RetryMax, c.MaxRetries)
}

// Delay returns the backoff delay for the given retry number (1-based).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if retryCount > 30 {
			return p.Max
		}
		d = p.Initial * (1 << (retryCount - 1))
	default:
		d = time.Duration(retryCount) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, the retries
// are exhausted, or ctx is done. fn receives the 1-based attempt number.
// Only classified errors that allow retrying are retried.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		ce, ok := errors.AsClassified(err)
		if !ok || !ce.CanRetry() || attempt > p.MaxRetries {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "retry cancelled").
				WithContext("last_error", err.Error()).
				Build()
		case <-timer.C:
		}
	}
}
