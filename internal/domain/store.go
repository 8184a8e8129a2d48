package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	// Event restricts audit listings to one event name.
	Event string
	// Account restricts audit listings to rows recorded for one account.
	Account string
}

// StoredLock is a lock snapshot as persisted for one account.
type StoredLock struct {
	Account     string
	Schema      SchemaVersion
	Lock        Lock
	IsWithdrawn bool
	FirstSeen   time.Time
	LastSeen    time.Time
}

// LockStore persists lock snapshots per account. UpsertBatch returns the keys
// of locks that were stored as active and are now withdrawn.
type LockStore interface {
	UpsertBatch(ctx context.Context, account string, schema SchemaVersion, locks []Lock) ([]LockKey, error)
	ListByAccount(ctx context.Context, account string, opts ListOpts) ([]StoredLock, error)
	Get(ctx context.Context, account string, key LockKey) (StoredLock, error)
	Accounts(ctx context.Context) ([]string, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
