// Package pipeline runs the background indexer: it keeps the lock history of
// watched accounts fresh and snapshots watched pairs to cold storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/notify"
)

// cycleLockKey guards an indexer cycle across instances.
const cycleLockKey = "indexer:cycle"

// Alerter forwards operator alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes the Orchestrator.
type Config struct {
	Interval time.Duration
	// LockTTL bounds how long one instance may hold the cycle lock.
	LockTTL time.Duration
}

// Orchestrator runs indexer cycles on a ticker and on demand.
type Orchestrator struct {
	locks    *LockSyncer
	archiver *Archiver
	guard    domain.LockManager
	alerts   Alerter
	trigger  <-chan struct{}
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator. archiver, guard, alerts and
// trigger may be nil.
func NewOrchestrator(
	locks *LockSyncer,
	archiver *Archiver,
	guard domain.LockManager,
	alerts Alerter,
	trigger <-chan struct{},
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &Orchestrator{
		locks:    locks,
		archiver: archiver,
		guard:    guard,
		alerts:   alerts,
		trigger:  trigger,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a cycle immediately and then on every tick or trigger until
// ctx is cancelled. Cycle failures are logged and alerted, never returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "indexer starting",
		slog.Duration("interval", o.cfg.Interval),
		slog.Bool("archive", o.archiver != nil),
	)

	o.cycle(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("indexer stopped")
			return nil
		case <-ticker.C:
			o.cycle(ctx)
		case <-o.trigger:
			o.logger.InfoContext(ctx, "indexer cycle triggered")
			o.cycle(ctx)
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) {
	err := o.RunOnce(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	o.logger.ErrorContext(ctx, "indexer cycle failed", slog.String("error", err.Error()))
	if o.alerts != nil {
		if alertErr := o.alerts.Notify(ctx, notify.EventIndexerError, "Indexer cycle failed", err.Error()); alertErr != nil {
			o.logger.WarnContext(ctx, "indexer alert failed", slog.String("error", alertErr.Error()))
		}
	}
}

// RunOnce runs one cycle. It is a no-op when another instance holds the
// cycle lock.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if o.guard != nil {
		unlock, err := o.guard.Acquire(ctx, cycleLockKey, o.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			o.logger.DebugContext(ctx, "indexer cycle skipped, lock held elsewhere")
			return nil
		}
		if err != nil {
			return fmt.Errorf("pipeline: acquire cycle lock: %w", err)
		}
		defer unlock()
	}

	start := o.now()
	var errs []error
	if o.locks != nil {
		if _, err := o.locks.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("lock sync: %w", err))
		}
	}
	if o.archiver != nil {
		if _, err := o.archiver.Run(ctx, start); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}

	o.logger.InfoContext(ctx, "indexer cycle complete",
		slog.Duration("took", o.now().Sub(start)),
		slog.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}
