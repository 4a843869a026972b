package auth

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is how often an adapter checks for its SDK.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultInitTimeout is how long an adapter waits for its SDK.
	DefaultInitTimeout = 10 * time.Second
)

// WaitForSDK polls load until it reports the SDK present, checking once
// immediately and then every interval. It gives up with ErrInitTimeout after
// timeout, or with ctx's error if ctx ends first.
func WaitForSDK[T any](ctx context.Context, load func() (T, bool), interval, timeout time.Duration) (T, error) {
	if v, ok := load(); ok {
		return v, nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}

	var zero T
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline.C:
			// última oportunidad: el SDK pudo aparecer justo en el límite
			if v, ok := load(); ok {
				return v, nil
			}
			return zero, fmt.Errorf("%w after %s", ErrInitTimeout, timeout)
		case <-tick.C:
			if v, ok := load(); ok {
				return v, nil
			}
		}
	}
}
