// Package retry re-runs upstream calls that failed for transient reasons.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
)

type Action int

const (
	Stop  Action = iota // permanent error, return it as is
	Retry               // transient error, normal backoff
	After               // rate limited, longer backoff
)

type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	// MaxElapsedTime bounds the whole retry loop; zero means no bound.
	MaxElapsedTime time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

// DefaultPolicy is used for YouTube Data API calls.
var DefaultPolicy = Policy{
	MaxAttempts:      3,
	InitialBackoff:   500 * time.Millisecond,
	RateLimitBackoff: 5 * time.Second,
	MaxElapsedTime:   30 * time.Second,
}

type Classify func(err error) Action

type Operation[T any] func() (T, error)

// rateLimited carries the upstream error together with the wait the backoff
// loop must honour before the next attempt.
type rateLimited struct {
	err   error
	after *backoff.RetryAfterError
}

func (r *rateLimited) Error() string   { return r.err.Error() }
func (r *rateLimited) Unwrap() []error { return []error{r.err, r.after} }

// Do runs op until it succeeds, classify says Stop, attempts run out or ctx
// is done. Stop errors are returned unwrapped.
func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.Multiplier = 2
	if p.InitialBackoff > 0 {
		bo.InitialInterval = p.InitialBackoff
	}

	attempts := 0
	stopped := false
	operation := func() (T, error) {
		attempts++
		val, err := op()
		if err == nil {
			return val, nil
		}

		switch classify(err) {
		case Stop:
			stopped = true
			return val, backoff.Permanent(err)
		case After:
			wait := p.RateLimitBackoff
			if wait < bo.InitialInterval {
				wait = bo.InitialInterval
			}
			return val, &rateLimited{err: err, after: &backoff.RetryAfterError{Duration: wait}}
		default:
			return val, err
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(attempts, unwrap(err), wait)
		}))
	}

	val, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return val, nil
	}

	err = unwrap(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || stopped {
		return val, err
	}
	return val, fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// unwrap strips the markers the operation adds for the backoff loop.
func unwrap(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	var limited *rateLimited
	if errors.As(err, &limited) {
		err = limited.err
	}
	return err
}

// ClassifyUpstream retries transient upstream errors and waits longer on
// rate limiting. Context errors stop immediately.
func ClassifyUpstream(err error) Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Stop
	}
	if !apperrors.IsTransient(err) {
		return Stop
	}
	var e *apperrors.Error
	if errors.As(err, &e) && e.StatusCode == http.StatusTooManyRequests {
		return After
	}
	return Retry
}
