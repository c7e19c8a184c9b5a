// Package poll repeats a read until a condition holds or a deadline passes.
// It replaces fixed sleeps around work the server finishes asynchronously.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Default polling parameters.
const (
	DefaultInitial  = 250 * time.Millisecond
	DefaultMax      = 2 * time.Second
	DefaultDeadline = 10 * time.Second
)

// ErrDeadline is returned when the condition never held before the deadline.
var ErrDeadline = errors.New("condition not met before deadline")

var errPending = errors.New("pending")

// Options bound a polling loop. Zero Initial and Max fall back to the
// defaults; a zero Deadline means a single attempt.
type Options struct {
	// Initial is the delay before the second attempt; later delays double.
	Initial time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Deadline bounds the whole loop, measured from the first attempt.
	Deadline time.Duration
}

func (o Options) withDefaults() Options {
	if o.Initial <= 0 {
		o.Initial = DefaultInitial
	}
	if o.Max <= 0 {
		o.Max = DefaultMax
	}
	if o.Max < o.Initial {
		o.Max = o.Initial
	}
	if o.Deadline < 0 {
		o.Deadline = 0
	}
	return o
}

// Func is one attempt. It reports done=true once the condition holds. A
// non-nil error stops polling immediately and is returned as is.
type Func func(ctx context.Context) (done bool, err error)

// Until calls fn until it reports done, returns an error, the deadline
// elapses (ErrDeadline), or ctx ends (ctx.Err()). It always makes at least one
// attempt and returns how many it made.
func Until(ctx context.Context, opts Options, fn Func) (int, error) {
	opts = opts.withDefaults()

	b := retry.NewExponential(opts.Initial)
	b = retry.WithCappedDuration(opts.Max, b)
	b = retry.WithMaxDuration(opts.Deadline, b)

	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errPending)
		}
		return nil
	})
	if errors.Is(err, errPending) {
		return attempts, ErrDeadline
	}
	return attempts, err
}

// Wait blocks for d or until ctx ends.
func Wait(ctx context.Context, d time.Duration) error {
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
