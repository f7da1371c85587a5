package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
)

// LotService handles manual lot management.
type LotService struct {
	lotRepo    *repository.LotRepository
	schemeRepo *repository.SchemeRepository
	syncer     *SyncService
	logger     *logging.Logger
}

// NewLotService creates a new LotService with the provided dependencies.
func NewLotService(
	lotRepo *repository.LotRepository,
	schemeRepo *repository.SchemeRepository,
	syncer *SyncService,
	logger *logging.Logger,
) *LotService {
	return &LotService{
		lotRepo:    lotRepo,
		schemeRepo: schemeRepo,
		syncer:     syncer,
		logger:     logger,
	}
}

// GetLots retrieves all lots ordered by start date.
func (s *LotService) GetLots(ctx context.Context) ([]model.Lot, error) {
	return s.lotRepo.GetLots(ctx)
}

// GetLot retrieves a single lot by its ID.
// Returns ErrLotNotFound if the lot does not exist.
func (s *LotService) GetLot(ctx context.Context, id string) (model.Lot, error) {
	return s.lotRepo.GetLot(ctx, id)
}

// CreateLot stores a manually entered lot and syncs it immediately unless its
// units are pinned. A failed sync does not fail the creation; the lot is picked
// up again by the next scheduled sync.
//
// Parameters:
//   - ctx: Context for the operation
//   - req: CreateLotRequest, already validated
//
// Returns the lot as stored after the sync, or ErrSchemeNotFound when the scheme does not exist.
func (s *LotService) CreateLot(ctx context.Context, req request.CreateLotRequest) (*model.Lot, error) {
	if _, err := s.schemeRepo.GetScheme(ctx, req.SchemeID); err != nil {
		return nil, err
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}

	lot := &model.Lot{
		ID:            uuid.New().String(),
		SchemeID:      req.SchemeID,
		Kind:          model.LotKind(req.Kind),
		Amount:        req.Amount,
		StartDate:     startDate,
		StepUpPercent: req.StepUpPercent,
		ManualUnits:   req.ManualUnits,
		Folio:         req.Folio,
		Source:        model.SourceManual,
		CreatedAt:     time.Now().UTC(),
	}
	if lot.Kind == model.LotOneOff {
		lot.InvestedCapital = lot.Amount
	}
	if lot.ManualUnits != nil {
		lot.Units = *lot.ManualUnits
	}

	if _, err := s.lotRepo.InsertLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to create lot: %w", err)
	}

	if lot.Pinned() {
		return lot, nil
	}

	outcome, err := s.syncer.SyncLot(ctx, lot.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("lot_id", lot.ID).Msg("initial sync failed")
		return lot, nil
	}
	if outcome.Status == model.SyncStatusSynced {
		stored, err := s.lotRepo.GetLot(ctx, lot.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload lot: %w", err)
		}
		return &stored, nil
	}
	return lot, nil
}

// DeleteLot removes a lot.
// Returns ErrLotNotFound if the lot does not exist.
func (s *LotService) DeleteLot(ctx context.Context, id string) error {
	return s.lotRepo.DeleteLot(ctx, id)
}
