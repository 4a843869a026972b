package sdk

import (
	"context"
	"time"

	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

const maxRetryBackoff = 30 * time.Second

// Bootstrap builds an SDK in the background and fills slot once build
// succeeds, retrying with a doubling backoff until ctx ends. It returns
// immediately; adapters observe the result by polling the slot.
func Bootstrap[T any](ctx context.Context, name string, slot *Slot[T], retry time.Duration, build func(context.Context) (T, error)) {
	if retry <= 0 {
		retry = time.Second
	}
	log := logger.L().With(logger.Component("sdk.bootstrap"), logger.String("sdk", name))

	go func() {
		backoff := retry
		for attempt := 1; ; attempt++ {
			v, err := build(ctx)
			if err == nil {
				slot.Fill(v)
				log.Info("sdk loaded", logger.Int("attempt", attempt))
				return
			}
			log.Warn("sdk load failed", logger.Int("attempt", attempt), logger.Err(err))

			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			if backoff *= 2; backoff > maxRetryBackoff {
				backoff = maxRetryBackoff
			}
		}
	}()
}
