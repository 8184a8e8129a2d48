package domain

import (
	"context"
	"time"
)

// PairCache keeps recently fetched pair data and transaction history so that
// repeated page loads do not hit the subgraph.
type PairCache interface {
	SetPair(ctx context.Context, schema SchemaVersion, pair PairData) error
	GetPair(ctx context.Context, schema SchemaVersion, id string) (PairData, error)
	SetTransactions(ctx context.Context, schema SchemaVersion, pairID string, txns []TransactionRecord) error
	GetTransactions(ctx context.Context, schema SchemaVersion, pairID string) ([]TransactionRecord, error)
	Invalidate(ctx context.Context, schema SchemaVersion, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of view updates.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
