package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// PairCache implements domain.PairCache using Redis hashes with JSON-
// serialized pair data and transaction lists.
//
// Key schema:
//
//	{prefix}:pair:{schema}:{id} - hash with fields "data" and "txns"
type PairCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewPairCache creates a PairCache backed by the given Client. Entries expire
// after ttl.
func NewPairCache(c *Client, ttl time.Duration) *PairCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PairCache{c: c, rdb: c.rdb, ttl: ttl}
}

func (pc *PairCache) pairKey(schema domain.SchemaVersion, id string) string {
	return pc.c.key("pair", string(schema), strings.ToLower(id))
}

// SetPair stores pair data under its id.
func (pc *PairCache) SetPair(ctx context.Context, schema domain.SchemaVersion, pair domain.PairData) error {
	return pc.setField(ctx, schema, pair.ID, "data", pair)
}

// GetPair returns cached pair data, or domain.ErrNotFound.
func (pc *PairCache) GetPair(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairData, error) {
	var pair domain.PairData
	if err := pc.getField(ctx, schema, id, "data", &pair); err != nil {
		return domain.PairData{}, err
	}
	return pair, nil
}

// SetTransactions stores the normalized transaction list of a pair.
func (pc *PairCache) SetTransactions(ctx context.Context, schema domain.SchemaVersion, pairID string, txns []domain.TransactionRecord) error {
	return pc.setField(ctx, schema, pairID, "txns", txns)
}

// GetTransactions returns the cached transaction list, or domain.ErrNotFound.
func (pc *PairCache) GetTransactions(ctx context.Context, schema domain.SchemaVersion, pairID string) ([]domain.TransactionRecord, error) {
	var txns []domain.TransactionRecord
	if err := pc.getField(ctx, schema, pairID, "txns", &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// Invalidate drops everything cached for a pair.
func (pc *PairCache) Invalidate(ctx context.Context, schema domain.SchemaVersion, id string) error {
	if err := pc.rdb.Del(ctx, pc.pairKey(schema, id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pair %s: %w", id, err)
	}
	return nil
}

func (pc *PairCache) setField(ctx context.Context, schema domain.SchemaVersion, id, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal pair %s %s: %w", id, field, err)
	}

	key := pc.pairKey(schema, id)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pair %s %s: %w", id, field, err)
	}
	return nil
}

func (pc *PairCache) getField(ctx context.Context, schema domain.SchemaVersion, id, field string, v any) error {
	data, err := pc.rdb.HGet(ctx, pc.pairKey(schema, id), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: get pair %s %s: %w", id, field, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: unmarshal pair %s %s: %w", id, field, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PairCache = (*PairCache)(nil)
