package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lpdesk/lpdesk/internal/pipeline"
	"github.com/lpdesk/lpdesk/internal/server"
	"github.com/lpdesk/lpdesk/internal/server/handler"
	"github.com/lpdesk/lpdesk/internal/server/ws"
	"github.com/lpdesk/lpdesk/internal/service"
)

var (
	_ handler.PositionService     = (*service.PositionService)(nil)
	_ handler.PairService         = (*service.PairService)(nil)
	_ handler.LockService         = (*service.LockService)(nil)
	_ handler.FarmService         = (*service.FarmService)(nil)
	_ ws.PositionWatcher          = (*service.PositionService)(nil)
	_ pipeline.LockSource         = (*service.LockService)(nil)
	_ pipeline.PairArchiveService = (*service.PairService)(nil)
)

// services holds the domain services shared by every mode.
type services struct {
	positions *service.PositionService
	pairs     *service.PairService
	locks     *service.LockService
	farms     *service.FarmService
}

func (a *App) buildServices(deps *Dependencies) (*services, error) {
	fee, err := a.cfg.FeePercent()
	if err != nil {
		return nil, fmt.Errorf("app: fee percent: %w", err)
	}

	return &services{
		positions: service.NewPositionService(deps.Chain, deps.Subgraph, deps.SignalBus, a.logger),
		pairs: service.NewPairService(deps.Subgraph, deps.PairCache, deps.Archive, deps.SignalBus,
			service.PairConfig{
				FeePercent: fee,
				TxnLimit:   a.cfg.Subgraph.TxnLimit,
			}, a.logger),
		locks: service.NewLockService(deps.Locker, deps.Subgraph, deps.LockStore, deps.AuditStore,
			deps.Notifier, deps.SignalBus,
			service.LockConfig{
				ChainID:         a.cfg.Chain.ChainID,
				PositionManager: deps.Chain.Manager(),
			}, a.logger),
		farms: service.NewFarmService(service.FarmLists{
			LP:    a.cfg.Farms.LP,
			Dual:  a.cfg.Farms.Dual,
			Other: a.cfg.Farms.Other,
		}, deps.Subgraph),
	}, nil
}

// ServerMode serves the HTTP API and WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps, svcs, nil); err != nil {
		return err
	}
	a.startSessionSweeper(ctx, g, svcs.positions)
	return g.Wait()
}

// IndexerMode runs the lock sync and transaction archive loop.
func (a *App) IndexerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting indexer mode")

	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startIndexer(ctx, g, deps, svcs, nil); err != nil {
		return err
	}
	return g.Wait()
}

// FullMode runs the server and the indexer in one process. POST
// /api/indexer/trigger requests an immediate indexer cycle.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}

	triggerCh := make(chan struct{}, 1)

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startIndexer(ctx, g, deps, svcs, triggerCh); err != nil {
		return err
	}
	if err := a.startHTTPServer(ctx, g, deps, svcs, triggerCh); err != nil {
		return err
	}
	a.startSessionSweeper(ctx, g, svcs.positions)
	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to g.
// triggerCh is optional; when nil the indexer trigger endpoint answers 503.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, triggerCh chan<- struct{}) error {
	proxies, err := a.cfg.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	hub := ws.NewHub(deps.SignalBus, svcs.positions, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: a.startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.startedAt, svcs.positions),
		Positions: handler.NewPositionHandler(svcs.positions, a.logger),
		Pairs:     handler.NewPairHandler(svcs.pairs, a.logger),
		Locks:     handler.NewLockHandler(svcs.locks, a.logger),
		Farms:     handler.NewFarmHandler(svcs.farms, a.logger),
		Indexer:   handler.NewIndexerHandler(triggerCh, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,

		TrustedProxies: proxies,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return nil
}

// startSessionSweeper drops idle position view sessions on a ticker.
func (a *App) startSessionSweeper(ctx context.Context, g *errgroup.Group, positions *service.PositionService) {
	interval := a.cfg.View.SweepInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	idle := a.cfg.View.SessionIdle.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := positions.Sweep(idle); n > 0 {
					a.logger.DebugContext(ctx, "swept idle sessions", slog.Int("count", n))
				}
			}
		}
	})
}

// startIndexer adds the indexer loop to g. triggerCh is optional.
func (a *App) startIndexer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, triggerCh <-chan struct{}) error {
	syncer := pipeline.NewLockSyncer(svcs.locks, deps.Throttle, deps.Notifier, pipeline.LockSyncConfig{
		Accounts:   a.cfg.Indexer.Accounts,
		Rate:       a.cfg.Indexer.LockerRate,
		Window:     a.cfg.Indexer.LockerWindow.Duration,
		WarnWithin: a.cfg.Indexer.UnlockWarning.Duration,
	}, a.logger.With(slog.String("component", "lock_sync")))

	var archiver *pipeline.Archiver
	if deps.Archive != nil {
		refs, err := a.cfg.ArchivePairs()
		if err != nil {
			return fmt.Errorf("app: archive pairs: %w", err)
		}
		targets := make([]pipeline.ArchiveTarget, 0, len(refs))
		for _, r := range refs {
			targets = append(targets, pipeline.ArchiveTarget{Schema: r.Schema, ID: r.ID})
		}
		archiver = pipeline.NewArchiver(svcs.pairs, targets, a.logger.With(slog.String("component", "archiver")))
	}

	orch := pipeline.NewOrchestrator(syncer, archiver, deps.LockManager, deps.Notifier, triggerCh,
		pipeline.Config{
			Interval: a.cfg.Indexer.Interval.Duration,
			LockTTL:  a.cfg.Indexer.LockTTL.Duration,
		}, a.logger.With(slog.String("component", "indexer")))

	g.Go(func() error {
		return orch.Run(ctx)
	})
	return nil
}
