package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// memBlob is an in-memory BlobWriter and BlobReader.
type memBlob struct {
	mu   sync.Mutex
	objs map[string][]byte
	puts int
}

func newMemBlob() *memBlob { return &memBlob{objs: make(map[string][]byte)} }

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[path] = b
	m.puts++
	return nil
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for p, b := range m.objs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[path]
	return ok, nil
}

func TestTransactionArchive_ArchiveAndLoad(t *testing.T) {
	blob := newMemBlob()
	arch := NewTransactionArchive(blob, blob, nil)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	recs := []domain.TransactionRecord{
		{Kind: domain.TxnSwap, Hash: "0x1", Timestamp: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), Amount0: decimal.NewFromInt(5)},
		{Kind: domain.TxnAdd, Hash: "0x2", Timestamp: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
	}

	n, err := arch.Archive(ctx, domain.SchemaV2, "0xPair", recs, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	days, err := arch.Days(ctx, domain.SchemaV2, "0xpair")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2024-03-01", "2024-03-02"}, days)

	loaded, err := arch.Load(ctx, domain.SchemaV2, "0xpair", "2024-03-01")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "0x1", loaded[0].Hash)
	assert.True(t, loaded[0].Amount0.Equal(decimal.NewFromInt(5)))
}

func TestTransactionArchive_SkipsCompletedDays(t *testing.T) {
	blob := newMemBlob()
	arch := NewTransactionArchive(blob, blob, nil)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	recs := []domain.TransactionRecord{
		{Hash: "old", Timestamp: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		{Hash: "today", Timestamp: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)},
	}

	_, err := arch.Archive(ctx, domain.SchemaV3, "0xpool", recs, now)
	require.NoError(t, err)
	n, err := arch.Archive(ctx, domain.SchemaV3, "0xpool", recs, now)
	require.NoError(t, err)

	assert.Equal(t, 1, n, "only the current day is rewritten")
	assert.Equal(t, 3, blob.puts)
}

func TestTransactionArchive_LoadMissingDay(t *testing.T) {
	blob := newMemBlob()
	arch := NewTransactionArchive(blob, blob, nil)

	_, err := arch.Load(context.Background(), domain.SchemaV3, "0xpool", "2024-01-01")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = arch.Load(context.Background(), domain.SchemaV3, "0xpool", "../etc")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://127.0.0.1:9000", normaliseEndpoint("127.0.0.1:9000", false))
	assert.Equal(t, "http://x", normaliseEndpoint("http://x", true))
}
