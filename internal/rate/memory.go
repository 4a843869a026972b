package rate

import (
	"context"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	xrate "golang.org/x/time/rate"
)

// MemoryLimiter da a cada key un token bucket de Max tokens que se rellena a
// Max/Window. Los buckets sin uso expiran solos.
type MemoryLimiter struct {
	Max    int
	Window time.Duration

	mu      sync.Mutex
	buckets *gocache.Cache
	now     func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		Max:     max,
		Window:  window,
		buckets: gocache.New(2*window, window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	b := l.bucket(key)
	now := l.now()

	r := b.ReserveN(now, 1)
	if !r.OK() {
		return Result{Allowed: false, RetryAfter: l.Window, WindowTTL: l.Window}, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return Result{
			Allowed:    false,
			RetryAfter: time.Duration(math.Ceil(d.Seconds())) * time.Second,
			WindowTTL:  l.Window,
		}, nil
	}

	remaining := int64(b.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:     true,
		Remaining:   remaining,
		WindowTTL:   l.Window,
		CurrentHits: int64(l.Max) - remaining,
	}, nil
}

func (l *MemoryLimiter) bucket(key string) *xrate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*xrate.Limiter)
	}
	every := xrate.Every(l.Window / time.Duration(l.Max))
	b := xrate.NewLimiter(every, l.Max)
	l.buckets.SetDefault(key, b)
	return b
}
