package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// PairArchiveService writes a pair's recent transactions to cold storage.
type PairArchiveService interface {
	ArchivePair(ctx context.Context, schema domain.SchemaVersion, id string, now time.Time) (int, error)
}

// ArchiveTarget names one watched pair.
type ArchiveTarget struct {
	Schema domain.SchemaVersion
	ID     string
}

// Archiver snapshots the transactions of watched pairs to S3.
type Archiver struct {
	pairs   PairArchiveService
	targets []ArchiveTarget
	logger  *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(pairs PairArchiveService, targets []ArchiveTarget, logger *slog.Logger) *Archiver {
	return &Archiver{
		pairs:   pairs,
		targets: targets,
		logger:  logger,
	}
}

// Run executes a single archive run over every target. It returns the total
// number of records written; failing pairs are skipped and reported joined.
func (a *Archiver) Run(ctx context.Context, now time.Time) (int, error) {
	total := 0
	var errs []error
	for _, t := range a.targets {
		n, err := a.pairs.ArchivePair(ctx, t.Schema, t.ID, now)
		total += n
		if err != nil {
			a.logger.WarnContext(ctx, "pair archive failed",
				slog.String("schema", string(t.Schema)),
				slog.String("pair", t.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("pair %s/%s: %w", t.Schema, t.ID, err))
			continue
		}
		a.logger.DebugContext(ctx, "pair archived",
			slog.String("schema", string(t.Schema)),
			slog.String("pair", t.ID),
			slog.Int("records", n),
		)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int("pairs", len(a.targets)),
		slog.Int("records", total),
	)
	return total, errors.Join(errs...)
}
