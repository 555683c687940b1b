package backoff

import (
	"context"
	"fmt"
	"time"
)

// Backoff implements an exponential backoff strategy that caps the
// calculated delay at a configured maximum.
type Backoff struct {
	base       time.Duration // starting delay
	max        time.Duration // maximum delay cap, zero for none
	multiplier int
	attempt    int // current attempt counter
}

// New creates a new backoff helper with base and max durations and a
// doubling multiplier. A zero max disables the cap.
func New(base, max time.Duration) *Backoff {
	return NewWithMultiplier(base, max, 2)
}

// NewWithMultiplier creates a backoff helper that grows by multiplier on
// every attempt.
func NewWithMultiplier(base, max time.Duration, multiplier int) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max != 0 && max < base {
		max = base
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		base:       base,
		max:        max,
		multiplier: multiplier,
	}
}

// Next returns the delay for the current attempt and increments the internal
// counter so that each subsequent call produces a longer delay until the
// configured maximum is reached.
func (b *Backoff) Next() time.Duration {
	delay := b.base
	for i := 0; i < b.attempt; i++ {
		delay *= time.Duration(b.multiplier)
		if b.max != 0 && delay >= b.max {
			return b.max
		}
	}
	b.attempt++
	return delay
}

// Reset sets the attempt counter back to zero so that the next call to Next
// returns the base delay again.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Policy describes a bounded retry with exponential backoff between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
	MaxDelay    time.Duration
}

// DefaultPolicy is four attempts starting at two seconds, doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second, Multiplier: 2}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExhaustedError is returned by Retry when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Retry calls fn until it succeeds, returns a *Permanent error, or the policy
// runs out of attempts. fn receives the 1-based attempt number. A nil sleep
// uses Sleep.
func Retry(ctx context.Context, p Policy, sleep Sleeper, fn func(attempt int) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}
	b := NewWithMultiplier(p.BaseDelay, p.MaxDelay, p.Multiplier)

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if perm, ok := err.(*Permanent); ok {
			return perm.Err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if serr := sleep(ctx, b.Next()); serr != nil {
			return serr
		}
	}
	return &ExhaustedError{Attempts: p.MaxAttempts, Last: err}
}

// Poll calls check every interval until it returns nil or timeout worth of
// intervals have elapsed. It returns the last error from check.
func Poll(ctx context.Context, timeout, interval time.Duration, sleep Sleeper, check func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = time.Second
	}
	if sleep == nil {
		sleep = Sleep
	}
	attempts := int(timeout/interval) + 1

	var err error
	for i := 0; i < attempts; i++ {
		if err = check(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := sleep(ctx, interval); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("not ready after %s: %w", timeout, err)
}
