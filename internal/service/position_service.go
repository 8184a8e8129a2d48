package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/positionview"
)

// WalletPositions reads the position NFTs held directly by a wallet.
type WalletPositions interface {
	PositionsOf(ctx context.Context, owner common.Address) ([]domain.Position, error)
}

// FarmingPositions reads the position NFTs a wallet has staked for farming.
type FarmingPositions interface {
	FetchFarmingDeposits(ctx context.Context, owner string) ([]domain.Position, error)
}

type session struct {
	state   positionview.State
	touched time.Time
}

// PositionService serves the derived position view. Each viewer session
// keeps its own stabilization state, so a transient empty fetch for one
// viewer does not affect another.
type PositionService struct {
	wallet  WalletPositions
	farming FarmingPositions
	bus     domain.SignalBus
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewPositionService creates a PositionService. bus may be nil.
func NewPositionService(
	wallet WalletPositions,
	farming FarmingPositions,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		wallet:   wallet,
		farming:  farming,
		bus:      bus,
		logger:   logger,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Fetch reads wallet and farming positions of account concurrently and merges
// them. A farming record replaces a wallet record with the same token id. Any
// failure yields a FetchFailed result and the error.
func (s *PositionService) Fetch(ctx context.Context, account string) (domain.PositionsResult, error) {
	res := domain.PositionsResult{Account: account, Status: domain.FetchReady}
	if account == "" {
		res.Positions = []domain.Position{}
		return res, nil
	}
	if !common.IsHexAddress(account) {
		res.Status = domain.FetchFailed
		return res, fmt.Errorf("position_service: %q: %w", account, domain.ErrInvalidAccount)
	}

	var held, staked []domain.Position
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		held, err = s.wallet.PositionsOf(gctx, common.HexToAddress(account))
		return err
	})
	if s.farming != nil {
		g.Go(func() error {
			var err error
			staked, err = s.farming.FetchFarmingDeposits(gctx, account)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		res.Status = domain.FetchFailed
		return res, fmt.Errorf("position_service: fetch %s: %w", account, err)
	}

	res.Positions = mergePositions(held, staked)
	return res, nil
}

func mergePositions(held, staked []domain.Position) []domain.Position {
	out := make([]domain.Position, 0, len(held)+len(staked))
	index := make(map[string]int, len(held)+len(staked))
	add := func(p domain.Position) {
		if p.TokenID == nil {
			out = append(out, p)
			return
		}
		id := p.TokenID.String()
		if i, ok := index[id]; ok {
			out[i] = p
			return
		}
		index[id] = len(out)
		out = append(out, p)
	}
	for _, p := range held {
		add(p)
	}
	for _, p := range staked {
		add(p)
	}
	return out
}

// View fetches account's positions and derives the view for sessionID. An
// empty or unknown session id starts a new session; the id in use is
// returned. A failed fetch is not an error here: the view reports
// FetchFailed and keeps showing the last good list.
func (s *PositionService) View(ctx context.Context, sessionID, account string, prefs domain.Preferences) (string, domain.DerivedView, error) {
	res, err := s.Fetch(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAccount) {
			return sessionID, domain.DerivedView{}, err
		}
		s.logger.WarnContext(ctx, "position_service: fetch failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
	}

	sessionID, view := s.apply(sessionID, account, res, prefs)
	s.publish(ctx, sessionID, view)
	return sessionID, view, nil
}

// Apply feeds an externally fetched result into a session. It is used by the
// WebSocket hub, which emits a loading result before each fetch.
func (s *PositionService) Apply(ctx context.Context, sessionID string, res domain.PositionsResult, prefs domain.Preferences) (string, domain.DerivedView) {
	sessionID, view := s.apply(sessionID, res.Account, res, prefs)
	s.publish(ctx, sessionID, view)
	return sessionID, view
}

func (s *PositionService) apply(sessionID, account string, res domain.PositionsResult, prefs domain.Preferences) (string, domain.DerivedView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if sessionID == "" || !ok {
		sessionID = uuid.NewString()
		sess = &session{}
		s.sessions[sessionID] = sess
	}

	next, view := positionview.Derive(sess.state, account, res, prefs)
	sess.state = next
	sess.touched = s.now()
	return sessionID, view
}

// Drop forgets a session's state. It reports whether the session existed.
func (s *PositionService) Drop(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were dropped.
func (s *PositionService) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	n := 0
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Sessions returns the number of live sessions.
func (s *PositionService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *PositionService) publish(ctx context.Context, sessionID string, view domain.DerivedView) {
	if s.bus == nil || view.Account == "" {
		return
	}
	evt, err := json.Marshal(map[string]any{
		"event":   "positions_view",
		"session": sessionID,
		"view":    view,
	})
	if err != nil {
		return
	}
	if pubErr := s.bus.Publish(ctx, ChannelPositions, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "position_service: publish view failed",
			slog.String("account", view.Account),
			slog.String("error", pubErr.Error()),
		)
	}
}
