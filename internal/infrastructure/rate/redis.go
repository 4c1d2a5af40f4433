package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// limitScript counts one hit and returns {count, remaining window in ms}.
// The expiry is set when the key is first created, so the window is anchored
// to the first hit.
var limitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// Redis is a fixed-window limiter backed by a shared Redis instance, so the
// limit holds across replicas. The Redis server's clock anchors the window;
// the now argument is ignored.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis builds a limiter allowing limit calls per key per window. The
// prefix namespaces the counter keys; it defaults to "ratelimit".
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow consumes one slot for key. Errors mean Redis was unreachable; callers
// decide whether to fail open.
func (r *Redis) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	res, err := limitScript.Run(ctx, r.client, []string{r.prefix + ":" + key}, r.window.Milliseconds()).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, _ := res[0].(int64)
	ttlMillis, _ := res[1].(int64)
	if ttlMillis < 0 {
		ttlMillis = r.window.Milliseconds()
	}

	if count > int64(r.limit) {
		return false, time.Duration(ttlMillis) * time.Millisecond, nil
	}
	return true, 0, nil
}
