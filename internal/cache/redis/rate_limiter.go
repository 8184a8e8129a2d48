package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lpdesk/lpdesk/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

var slidingWindow = redis.NewScript(slidingWindowLua)

// minBackoff bounds how often Wait retries a full window.
const minBackoff = 10 * time.Millisecond

// Verdict is the outcome of one sliding-window check.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts hits per key in a Redis sorted set. It guards the HTTP
// API per client and paces the indexer's lock backend calls.
type RateLimiter struct {
	c *Client
}

// NewRateLimiter creates a RateLimiter backed by c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Check records a hit for key when fewer than limit hits fall inside window
// and reports how long a rejected caller should back off.
func (rl *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Verdict, error) {
	res, err := slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.c.key("ratelimit", key)},
		time.Now().UnixMicro(), window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Verdict{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return Verdict{}, fmt.Errorf("redis: rate limit %s: malformed reply %v", key, res)
	}
	return Verdict{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Microsecond,
	}, nil
}

// Allow implements domain.RateLimiter.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	v, err := rl.Check(ctx, key, limit, window)
	return v.Allowed, err
}

// Wait blocks until key has room for one more hit, sleeping for the window's
// reported retry-after between attempts.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		v, err := rl.Check(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if v.Allowed {
			return nil
		}

		timer := time.NewTimer(max(v.RetryAfter, minBackoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
