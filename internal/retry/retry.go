// Package retry provides the exponential-backoff helper used for outbound
// storage calls on best-effort paths.
package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times, doubling the delay between attempts
// starting from base. It returns the last error, or ctx.Err() if the
// context is done while waiting.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		delay := base << uint(i)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
