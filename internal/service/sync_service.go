package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/valuation"
)

// NavSource supplies NAV series for valuation.
type NavSource interface {
	Series(ctx context.Context, fundID string) ([]model.NavPoint, error)
}

// SyncService recomputes the cached valuation of lots from NAV history.
type SyncService struct {
	lotRepo     *repository.LotRepository
	schemeRepo  *repository.SchemeRepository
	nav         NavSource
	engine      *valuation.Engine
	concurrency int
	logger      *logging.Logger
}

// NewSyncService creates a new SyncService with the provided dependencies.
// concurrency bounds how many lots are synced in parallel by SyncAll.
func NewSyncService(
	lotRepo *repository.LotRepository,
	schemeRepo *repository.SchemeRepository,
	nav NavSource,
	engine *valuation.Engine,
	concurrency int,
	logger *logging.Logger,
) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		lotRepo:     lotRepo,
		schemeRepo:  schemeRepo,
		nav:         nav,
		engine:      engine,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SyncLot recomputes and stores the valuation of one lot.
//
// Returns ErrLotNotFound if the lot does not exist. Every other problem is reported
// in the outcome, never as an error.
func (s *SyncService) SyncLot(ctx context.Context, lotID string) (model.SyncOutcome, error) {
	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return model.SyncOutcome{}, err
	}
	return s.syncLot(ctx, lot), nil
}

// SyncAll syncs every lot with bounded parallelism. One lot failing never aborts
// or rolls back the others; outcomes are returned in lot order.
func (s *SyncService) SyncAll(ctx context.Context) ([]model.SyncOutcome, error) {
	lots, err := s.lotRepo.GetLots(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToSync, err)
	}

	start := time.Now()
	outcomes := make([]model.SyncOutcome, len(lots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, lot := range lots {
		g.Go(func() error {
			outcomes[i] = s.syncLot(gctx, lot)
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()

	counts := CountOutcomes(outcomes)
	s.logger.Info().
		Int("lots", len(lots)).
		Int("synced", counts[model.SyncStatusSynced]).
		Int("skipped", counts[model.SyncStatusSkipped]).
		Int("failed", counts[model.SyncStatusFailed]).
		Dur("elapsed", time.Since(start)).
		Msg("sync finished")

	return outcomes, nil
}

func (s *SyncService) syncLot(ctx context.Context, lot model.Lot) model.SyncOutcome {
	out := model.SyncOutcome{
		LotID:           lot.ID,
		Units:           lot.EffectiveUnits(),
		InvestedCapital: lot.InvestedCapital,
	}

	if lot.Pinned() {
		return skipped(out, "units pinned manually")
	}

	scheme, err := s.schemeRepo.GetScheme(ctx, lot.SchemeID)
	if err != nil {
		return s.failed(out, err)
	}

	if scheme.FundID == "" && lot.Kind == model.LotOneOff {
		return skipped(out, "scheme has no fund ID")
	}

	var series []model.NavPoint
	if scheme.FundID != "" {
		series, err = s.nav.Series(ctx, scheme.FundID)
		switch {
		case errors.Is(err, apperrors.ErrNoHistoryAvailable):
			// Valued on cost until history appears.
			series = nil
		case err != nil:
			return s.failed(out, err)
		}
	}

	result, err := s.engine.Valuate(lot, series)
	if err != nil {
		return s.failed(out, err)
	}

	if err := s.lotRepo.UpdateValuation(ctx, lot.ID, result, s.engine.Now()); err != nil {
		return s.failed(out, err)
	}

	out.Status = model.SyncStatusSynced
	out.Units = result.Units
	out.InvestedCapital = result.InvestedCapital
	return out
}

func (s *SyncService) failed(out model.SyncOutcome, err error) model.SyncOutcome {
	s.logger.Warn().Err(err).Str("lot_id", out.LotID).Msg("lot sync failed")
	out.Status = model.SyncStatusFailed
	out.Reason = err.Error()
	return out
}

func skipped(out model.SyncOutcome, reason string) model.SyncOutcome {
	out.Status = model.SyncStatusSkipped
	out.Reason = reason
	return out
}

// CountOutcomes tallies outcomes by status.
func CountOutcomes(outcomes []model.SyncOutcome) map[model.SyncStatus]int {
	counts := make(map[model.SyncStatus]int, 3)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
