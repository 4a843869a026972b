// Package rate limita requests por key (IP + ruta). Dos backends: Redis
// (fixed window compartido entre procesos) y memoria (token bucket por key).
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result de una consulta al limiter.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// fixedWindow incrementa el contador de la ventana y fija su expiración en
// el primer hit, todo en un round-trip. Devuelve {hits, pttl_ms}.
var fixedWindow = rdb.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter es un fixed window compartido entre procesos. La key de Redis
// lleva el inicio de la ventana, así que ventanas viejas nunca se reusan.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(k string) string {
	winStart := l.now().UTC().Truncate(l.Window)
	return fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(k, " ", "_"), winStart.Unix())
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := fixedWindow.Run(ctx, l.Client, []string{l.key(key)}, l.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate: redis: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate: redis: unexpected reply %v", vals)
	}

	hits := vals[0]
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = l.Window
	}

	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   max(l.Max-hits, 0),
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(math.Ceil(ttl.Seconds())) * time.Second
	}
	return res, nil
}
