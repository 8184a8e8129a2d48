package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lpdesk/lpdesk/internal/analytics"
	"github.com/lpdesk/lpdesk/internal/domain"
)

// PairSource reads pair data and pair events from the subgraph.
type PairSource interface {
	FetchPair(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairData, error)
	FetchPairTransactions(ctx context.Context, schema domain.SchemaVersion, pairID string, first int) (*domain.RawPairTransactions, error)
}

// TransactionArchive stores daily snapshots of a pair's transactions.
type TransactionArchive interface {
	Archive(ctx context.Context, schema domain.SchemaVersion, pairID string, records []domain.TransactionRecord, now time.Time) (int, error)
	Days(ctx context.Context, schema domain.SchemaVersion, pairID string) ([]string, error)
	Load(ctx context.Context, schema domain.SchemaVersion, pairID, day string) ([]domain.TransactionRecord, error)
}

// PairPage is everything the pair analytics page shows.
type PairPage struct {
	Summary      domain.PairSummary         `json:"summary"`
	Transactions []domain.TransactionRecord `json:"transactions"`
}

// PairConfig tunes the PairService.
type PairConfig struct {
	FeePercent decimal.Decimal
	// TxnLimit caps each of mints, swaps and burns per fetch.
	TxnLimit int
}

// PairService assembles pair summaries and normalized transaction lists,
// backed by a read-through cache.
type PairService struct {
	source  PairSource
	cache   domain.PairCache
	archive TransactionArchive
	bus     domain.SignalBus
	cfg     PairConfig
	logger  *slog.Logger
}

// NewPairService creates a PairService. cache, archive and bus may be nil.
func NewPairService(
	source PairSource,
	cache domain.PairCache,
	archive TransactionArchive,
	bus domain.SignalBus,
	cfg PairConfig,
	logger *slog.Logger,
) *PairService {
	if cfg.FeePercent.IsZero() {
		cfg.FeePercent = analytics.DefaultFeePercent
	}
	if cfg.TxnLimit <= 0 {
		cfg.TxnLimit = 100
	}
	return &PairService{
		source:  source,
		cache:   cache,
		archive: archive,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
	}
}

func normalizePairID(id string) (string, error) {
	if !common.IsHexAddress(id) {
		return "", fmt.Errorf("pair_service: pair %q: %w", id, domain.ErrInvalidAddress)
	}
	return strings.ToLower(id), nil
}

// Summary returns the display header of a pair.
func (s *PairService) Summary(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairSummary, error) {
	id, err := normalizePairID(id)
	if err != nil {
		return domain.PairSummary{}, err
	}
	pair, err := s.pair(ctx, schema, id)
	if err != nil {
		return domain.PairSummary{}, err
	}
	return analytics.Summarize(pair, schema, s.cfg.FeePercent), nil
}

func (s *PairService) pair(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairData, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPair(ctx, schema, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "pair_service: cache read failed",
				slog.String("pair", id),
				slog.String("error", err.Error()),
			)
		}
	}

	pair, err := s.source.FetchPair(ctx, schema, id)
	if err != nil {
		return domain.PairData{}, fmt.Errorf("pair_service: fetch pair %s: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.SetPair(ctx, schema, pair); err != nil {
			s.logger.WarnContext(ctx, "pair_service: cache write failed",
				slog.String("pair", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return pair, nil
}

// Transactions returns the pair's events, newest first. An empty kind returns
// every kind.
func (s *PairService) Transactions(ctx context.Context, schema domain.SchemaVersion, id string, kind domain.TxnKind) ([]domain.TransactionRecord, error) {
	id, err := normalizePairID(id)
	if err != nil {
		return nil, err
	}
	records, err := s.transactions(ctx, schema, id, true)
	if err != nil {
		return nil, err
	}
	if kind != "" {
		return analytics.FilterKind(records, kind), nil
	}
	return records, nil
}

func (s *PairService) transactions(ctx context.Context, schema domain.SchemaVersion, id string, useCache bool) ([]domain.TransactionRecord, error) {
	if useCache && s.cache != nil {
		if cached, err := s.cache.GetTransactions(ctx, schema, id); err == nil {
			return cached, nil
		}
	}

	raw, err := s.source.FetchPairTransactions(ctx, schema, id, s.cfg.TxnLimit)
	if err != nil {
		return nil, fmt.Errorf("pair_service: fetch transactions %s: %w", id, err)
	}
	records := analytics.SortByTimestamp(analytics.NormalizeTransactions(raw))
	if records == nil {
		records = []domain.TransactionRecord{}
	}

	if s.cache != nil {
		if err := s.cache.SetTransactions(ctx, schema, id, records); err != nil {
			s.logger.WarnContext(ctx, "pair_service: cache transactions failed",
				slog.String("pair", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return records, nil
}

// Page fetches the summary and the transactions of a pair concurrently.
func (s *PairService) Page(ctx context.Context, schema domain.SchemaVersion, id string) (PairPage, error) {
	id, err := normalizePairID(id)
	if err != nil {
		return PairPage{}, err
	}

	var page PairPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pair, err := s.pair(gctx, schema, id)
		if err != nil {
			return err
		}
		page.Summary = analytics.Summarize(pair, schema, s.cfg.FeePercent)
		return nil
	})
	g.Go(func() error {
		records, err := s.transactions(gctx, schema, id, true)
		page.Transactions = records
		return err
	})
	if err := g.Wait(); err != nil {
		return PairPage{}, err
	}
	return page, nil
}

// ArchivePair fetches fresh transactions, bypassing the cache, and writes
// them to the archive. It returns the number of records written.
func (s *PairService) ArchivePair(ctx context.Context, schema domain.SchemaVersion, id string, now time.Time) (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	id, err := normalizePairID(id)
	if err != nil {
		return 0, err
	}
	records, err := s.transactions(ctx, schema, id, false)
	if err != nil {
		return 0, err
	}
	n, err := s.archive.Archive(ctx, schema, id, records, now)
	if err != nil {
		return n, fmt.Errorf("pair_service: archive %s: %w", id, err)
	}

	if s.bus != nil && n > 0 {
		evt, _ := json.Marshal(map[string]any{
			"event":   "pair_archived",
			"schema":  schema,
			"pair":    id,
			"records": n,
		})
		if pubErr := s.bus.Publish(ctx, ChannelPairs, evt); pubErr != nil {
			s.logger.WarnContext(ctx, "pair_service: publish failed",
				slog.String("pair", id),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return n, nil
}

// ArchivedDays lists the days archived for a pair.
func (s *PairService) ArchivedDays(ctx context.Context, schema domain.SchemaVersion, id string) ([]string, error) {
	if s.archive == nil {
		return []string{}, nil
	}
	id, err := normalizePairID(id)
	if err != nil {
		return nil, err
	}
	return s.archive.Days(ctx, schema, id)
}

// ArchivedDay returns one archived day of a pair.
func (s *PairService) ArchivedDay(ctx context.Context, schema domain.SchemaVersion, id, day string) ([]domain.TransactionRecord, error) {
	if s.archive == nil {
		return nil, domain.ErrNotFound
	}
	id, err := normalizePairID(id)
	if err != nil {
		return nil, err
	}
	return s.archive.Load(ctx, schema, id, day)
}
