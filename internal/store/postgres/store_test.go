package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// setupTestDB starts a PostgreSQL container and applies the embedded
// migrations.
func setupTestDB(t *testing.T) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	c := NewFromPool(pool)
	t.Cleanup(c.Close)

	require.NoError(t, c.RunMigrations(ctx))
	require.NoError(t, c.RunMigrations(ctx), "migrations must be idempotent")
	return c
}

func testLock(contract string, deposit int64, withdrawn bool) domain.Lock {
	return domain.Lock{
		Event: domain.LockEvent{
			ChainID:             "0x89",
			LockContractAddress: contract,
			LockDepositID:       deposit,
			IsWithdrawn:         withdrawn,
			UnlockTime:          1800000000,
		},
		Token:             domain.LockToken{TokenSymbol: "QUICK-LP"},
		LiquidityContract: &domain.LiquidityContract{TokenAddress: "0xPair"},
	}
}

func TestLockStore_UpsertAndList(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()
	store := NewLockStore(c.Pool())

	withdrawn, err := store.UpsertBatch(ctx, "0xAcc", domain.SchemaV2, []domain.Lock{
		testLock("0xLock", 1, false),
		testLock("0xLock", 2, false),
	})
	require.NoError(t, err)
	assert.Empty(t, withdrawn)

	locks, err := store.ListByAccount(ctx, "0xacc", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, domain.SchemaV2, locks[0].Schema)
	assert.Equal(t, "QUICK-LP", locks[0].Lock.Token.TokenSymbol)

	got, err := store.Get(ctx, "0xACC", domain.LockKey{LockContract: "0xLOCK", DepositID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Lock.Event.LockDepositID)

	accounts, err := store.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xacc"}, accounts)
}

func TestLockStore_DetectsWithdrawal(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()
	store := NewLockStore(c.Pool())

	_, err := store.UpsertBatch(ctx, "0xacc", domain.SchemaV3, []domain.Lock{testLock("0xlock", 1, false)})
	require.NoError(t, err)

	withdrawn, err := store.UpsertBatch(ctx, "0xacc", domain.SchemaV3, []domain.Lock{testLock("0xlock", 1, true)})
	require.NoError(t, err)
	assert.Equal(t, []domain.LockKey{{LockContract: "0xlock", DepositID: 1}}, withdrawn)

	withdrawn, err = store.UpsertBatch(ctx, "0xacc", domain.SchemaV3, []domain.Lock{testLock("0xlock", 1, true)})
	require.NoError(t, err)
	assert.Empty(t, withdrawn, "a withdrawal is reported once")
}

func TestLockStore_GetNotFound(t *testing.T) {
	c := setupTestDB(t)

	_, err := NewLockStore(c.Pool()).Get(context.Background(), "0xacc", domain.LockKey{LockContract: "0x0", DepositID: 9})

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAuditStore_LogAndList(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()
	store := NewAuditStore(c.Pool())

	require.NoError(t, store.Log(ctx, "lock_refreshed", map[string]any{"deposit_id": 1}))
	require.NoError(t, store.Log(ctx, "lock_withdrawn", map[string]any{"deposit_id": 2}))

	all, err := store.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := store.List(ctx, domain.ListOpts{Event: "lock_withdrawn", Limit: 10})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, float64(2), only[0].Detail["deposit_id"])
}

func TestAuditStore_ListByAccount(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()
	store := NewAuditStore(c.Pool())

	require.NoError(t, store.Log(ctx, "lock_withdrawn", map[string]any{"account": "0xaaa", "deposit_id": 1}))
	require.NoError(t, store.Log(ctx, "lock_withdrawn", map[string]any{"account": "0xbbb", "deposit_id": 2}))
	require.NoError(t, store.Log(ctx, "lock_withdrawn", map[string]any{"account": "0xaaa", "deposit_id": 3}))

	entries, err := store.List(ctx, domain.ListOpts{Account: "0xAAA"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, float64(3), entries[0].Detail["deposit_id"])
	assert.Equal(t, float64(1), entries[1].Detail["deposit_id"])

	none, err := store.List(ctx, domain.ListOpts{Account: "0xccc"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
