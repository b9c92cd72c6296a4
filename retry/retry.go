// Package retry runs provider calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	Attempts     int // total attempts including the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       float64 // fraction of the delay, 0-1
}

// ProviderPolicy suits rate-limited HTTP APIs: three attempts, 500ms doubling up to 4s.
func ProviderPolicy() Policy {
	return Policy{Attempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second, Jitter: 0.2}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	delay := p.InitialDelay

	var result T
	var err error
	for attempt := 1; ; attempt++ {
		result, err = fn(ctx)
		if err == nil || IsPermanent(err) || attempt >= p.Attempts {
			return result, unwrapPermanent(err)
		}

		select {
		case <-time.After(withJitter(delay, p.Jitter)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

func withJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return time.Duration(float64(d) + float64(d)*factor*(rand.Float64()*2-1))
}
