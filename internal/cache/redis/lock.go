package redis

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lpdesk/lpdesk/internal/domain"
)

//go:embed scripts/release.lua
var releaseLua string

//go:embed scripts/extend.lua
var extendLua string

var (
	releaseScript = redis.NewScript(releaseLua)
	extendScript  = redis.NewScript(extendLua)
)

// LockManager hands out owner-tokened Redis locks. A held lock is extended
// every ttl/2 until it is released, so an indexer cycle that outlives the TTL
// keeps its lock; a crashed holder's lock still expires after one TTL.
type LockManager struct {
	c      *Client
	logger *slog.Logger
}

// NewLockManager creates a LockManager backed by c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c, logger: slog.Default().With(slog.String("component", "redis_lock"))}
}

// Acquire takes key for ttl or returns domain.ErrLockHeld. The returned
// release func is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	name := lm.c.key("lock", key)
	token := uuid.NewString()

	ok, err := lm.c.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go lm.keepAlive(name, token, ttl, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, lm.c.rdb, []string{name}, token).Err(); err != nil {
				lm.logger.Warn("release lock failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}, nil
}

func (lm *LockManager) keepAlive(name, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(ttl/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := extendScript.Run(ctx, lm.c.rdb, []string{name}, token, ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				lm.logger.Warn("extend lock failed", slog.String("key", name), slog.String("error", err.Error()))
				continue
			}
			if n == 0 {
				// Lost: expired or taken over.
				return
			}
		}
	}
}

var _ domain.LockManager = (*LockManager)(nil)
