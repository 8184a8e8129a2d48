package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lpdesk/lpdesk/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pos(id int64, liquidity int64, farming bool) domain.Position {
	return domain.Position{
		TokenID:   big.NewInt(id),
		Liquidity: big.NewInt(liquidity),
		OnFarming: farming,
	}
}

type fakeWallet struct {
	positions []domain.Position
	err       error
	calls     int
}

func (f *fakeWallet) PositionsOf(_ context.Context, _ common.Address) ([]domain.Position, error) {
	f.calls++
	return f.positions, f.err
}

type fakeFarming struct {
	positions []domain.Position
	err       error
}

func (f *fakeFarming) FetchFarmingDeposits(_ context.Context, _ string) ([]domain.Position, error) {
	return f.positions, f.err
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeBus() *fakeBus { return &fakeBus{published: make(map[string][][]byte)} }

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type fakePairSource struct {
	mu        sync.Mutex
	pair      domain.PairData
	raw       *domain.RawPairTransactions
	err       error
	pairCalls int
	txnCalls  int
	bulk      []domain.PairData
	bulkIDs   []string
}

func (f *fakePairSource) FetchPair(_ context.Context, _ domain.SchemaVersion, _ string) (domain.PairData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairCalls++
	return f.pair, f.err
}

func (f *fakePairSource) FetchPairTransactions(_ context.Context, _ domain.SchemaVersion, _ string, _ int) (*domain.RawPairTransactions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txnCalls++
	return f.raw, f.err
}

func (f *fakePairSource) FetchBulkPairs(_ context.Context, ids []string) ([]domain.PairData, error) {
	f.bulkIDs = ids
	return f.bulk, f.err
}

type memPairCache struct {
	mu    sync.Mutex
	pairs map[string]domain.PairData
	txns  map[string][]domain.TransactionRecord
}

func newMemPairCache() *memPairCache {
	return &memPairCache{
		pairs: make(map[string]domain.PairData),
		txns:  make(map[string][]domain.TransactionRecord),
	}
}

func (c *memPairCache) SetPair(_ context.Context, schema domain.SchemaVersion, p domain.PairData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs[string(schema)+p.ID] = p
	return nil
}

func (c *memPairCache) GetPair(_ context.Context, schema domain.SchemaVersion, id string) (domain.PairData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pairs[string(schema)+id]
	if !ok {
		return domain.PairData{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *memPairCache) SetTransactions(_ context.Context, schema domain.SchemaVersion, id string, t []domain.TransactionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txns[string(schema)+id] = t
	return nil
}

func (c *memPairCache) GetTransactions(_ context.Context, schema domain.SchemaVersion, id string) ([]domain.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.txns[string(schema)+id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (c *memPairCache) Invalidate(_ context.Context, schema domain.SchemaVersion, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pairs, string(schema)+id)
	delete(c.txns, string(schema)+id)
	return nil
}

type fakeArchive struct {
	records []domain.TransactionRecord
}

func (a *fakeArchive) Archive(_ context.Context, _ domain.SchemaVersion, _ string, records []domain.TransactionRecord, _ time.Time) (int, error) {
	a.records = append(a.records, records...)
	return len(records), nil
}

func (a *fakeArchive) Days(context.Context, domain.SchemaVersion, string) ([]string, error) {
	return []string{"2024-03-01"}, nil
}

func (a *fakeArchive) Load(context.Context, domain.SchemaVersion, string, string) ([]domain.TransactionRecord, error) {
	return a.records, nil
}

type fakeBackend struct {
	locks   []domain.Lock
	calls   int
	updated []domain.LockKey
}

func (f *fakeBackend) ListUserLocks(context.Context, string) ([]domain.Lock, error) {
	f.calls++
	return f.locks, nil
}

func (f *fakeBackend) UpdateLock(_ context.Context, c string, id int64) error {
	f.updated = append(f.updated, domain.LockKey{LockContract: c, DepositID: id})
	return nil
}

type fakeTokens struct{ ids []string }

func (f fakeTokens) FetchLiquidityTokens(context.Context, string) ([]string, error) {
	return f.ids, nil
}

type fakeLockStore struct {
	withdrawn []domain.LockKey
	upserts   int
}

func (s *fakeLockStore) UpsertBatch(context.Context, string, domain.SchemaVersion, []domain.Lock) ([]domain.LockKey, error) {
	s.upserts++
	return s.withdrawn, nil
}

func (s *fakeLockStore) ListByAccount(context.Context, string, domain.ListOpts) ([]domain.StoredLock, error) {
	return nil, nil
}

func (s *fakeLockStore) Get(context.Context, string, domain.LockKey) (domain.StoredLock, error) {
	return domain.StoredLock{}, domain.ErrNotFound
}

func (s *fakeLockStore) Accounts(context.Context) ([]string, error) { return nil, nil }

type fakeAudit struct {
	events []string
	opts   domain.ListOpts
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.opts = opts
	return []domain.AuditEntry{}, nil
}

type fakeNotifier struct{ locks []domain.Lock }

func (n *fakeNotifier) LockWithdrawn(_ context.Context, _ string, l domain.Lock) error {
	n.locks = append(n.locks, l)
	return nil
}
