package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by Await when the condition did not hold before
// the timeout elapsed.
var ErrWaitTimeout = errors.New("wait timed out")

// Condition is polled by Await. Errors are treated as "not yet": pages being
// replaced by a navigation routinely fail queries for a moment.
type Condition func(ctx context.Context) (bool, error)

// Await polls cond every interval until it returns true, the timeout elapses
// or ctx is done. The condition is checked once before the first sleep, so a
// condition that already holds returns without delay.
//
// A timeout yields an error wrapping ErrWaitTimeout, annotated with the last
// condition error if any; cancellation of ctx yields ctx.Err().
func Await(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			lastErr = err
		} else if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// WaitFor blocks until an element matching selector is present on page.
func WaitFor(ctx context.Context, page Page, selector string, timeout, interval time.Duration) error {
	err := Await(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		return page.Has(ctx, selector)
	})
	if errors.Is(err, ErrWaitTimeout) {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return err
}
