package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/statement"
)

// ImportService turns parsed statements into persisted lots without creating duplicates.
type ImportService struct {
	db         *sql.DB
	parser     *statement.Parser
	schemeRepo *repository.SchemeRepository
	lotRepo    *repository.LotRepository
	logger     *logging.Logger
}

// NewImportService creates a new ImportService with the provided dependencies.
func NewImportService(
	db *sql.DB,
	parser *statement.Parser,
	schemeRepo *repository.SchemeRepository,
	lotRepo *repository.LotRepository,
	logger *logging.Logger,
) *ImportService {
	return &ImportService{
		db:         db,
		parser:     parser,
		schemeRepo: schemeRepo,
		lotRepo:    lotRepo,
		logger:     logger,
	}
}

// ParseStatement extracts schemes and transactions from a statement document.
// Nothing is persisted; the result is returned for user confirmation.
//
// Parameters:
//   - data: The raw document bytes
//   - kind: A file name, extension or MIME type describing the document
//   - password: Optional password for protected documents
//
// Returns ErrUnsupportedFormat or ErrParseFailure when the document cannot be used.
func (s *ImportService) ParseStatement(ctx context.Context, data []byte, kind, password string) ([]model.ParsedScheme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	schemes, err := s.parser.Parse(data, kind, password)
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Int("bytes", len(data)).Msg("statement rejected")
		return nil, err
	}

	transactions := 0
	for _, sc := range schemes {
		transactions += len(sc.Transactions)
	}
	s.logger.Info().
		Str("kind", kind).
		Int("schemes", len(schemes)).
		Int("transactions", transactions).
		Dur("elapsed", time.Since(start)).
		Msg("statement parsed")

	return schemes, nil
}

// ConfirmImport persists the inflow transactions of confirmed schemes as one-off lots.
//
// Schemes are found or created by identity. A transaction whose (scheme, date, amount)
// triple matches an existing one-off lot is skipped, whether that lot was imported
// or entered by hand, as is a repeat of the same triple within one request. Outflows and unclassified transactions are counted as ignored.
// Units reported by the statement are pinned on the lot. Everything runs in one
// database transaction: either the whole import is applied or none of it.
func (s *ImportService) ConfirmImport(ctx context.Context, schemes []request.ImportScheme) (model.ImportResult, error) {
	result := model.ImportResult{Lots: []model.Lot{}}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("%w: begin transaction: %w", apperrors.ErrFailedToImport, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	schemeRepo := s.schemeRepo.WithTx(tx)
	lotRepo := s.lotRepo.WithTx(tx)
	now := time.Now().UTC()

	for _, in := range schemes {
		var scheme *model.Scheme

		for _, txn := range in.Transactions {
			if !txn.Kind.IsInflow() {
				result.Ignored++
				continue
			}

			if scheme == nil {
				found, err := findOrCreateScheme(ctx, schemeRepo, in, now)
				if err != nil {
					return model.ImportResult{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToImport, err)
				}
				scheme = &found
			}

			exists, err := lotRepo.HasOneOffLot(ctx, scheme.ID, txn.Date, txn.Amount)
			if err != nil {
				return model.ImportResult{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToImport, err)
			}
			if exists {
				result.Skipped++
				continue
			}

			lot := importedLot(scheme.ID, in.Folio, txn, now)
			inserted, err := lotRepo.InsertLot(ctx, &lot)
			if err != nil {
				return model.ImportResult{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToImport, err)
			}
			if !inserted {
				result.Skipped++
				continue
			}
			result.Created++
			result.Lots = append(result.Lots, lot)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.ImportResult{}, fmt.Errorf("%w: commit: %w", apperrors.ErrFailedToImport, err)
	}

	s.logger.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("ignored", result.Ignored).
		Msg("import confirmed")

	return result, nil
}

func findOrCreateScheme(ctx context.Context, repo *repository.SchemeRepository, in request.ImportScheme, now time.Time) (model.Scheme, error) {
	key := model.SchemeIdentityKey(in.FundID, in.Name, in.Ticker)

	existing, err := repo.GetSchemeByIdentity(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrSchemeNotFound) {
		return model.Scheme{}, err
	}

	scheme := model.Scheme{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		FundID:    strings.TrimSpace(in.FundID),
		Ticker:    model.NormalizeTicker(in.Ticker),
		Category:  strings.TrimSpace(in.Category),
		ISIN:      strings.TrimSpace(in.ISIN),
		CreatedAt: now,
	}
	if err := repo.InsertScheme(ctx, &scheme); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEntry) {
			return repo.GetSchemeByIdentity(ctx, key)
		}
		return model.Scheme{}, err
	}
	return scheme, nil
}

func importedLot(schemeID, folio string, txn model.ParsedTransaction, now time.Time) model.Lot {
	if folio == model.UnknownFolio {
		folio = ""
	}

	lot := model.Lot{
		ID:              uuid.New().String(),
		SchemeID:        schemeID,
		Kind:            model.LotOneOff,
		Amount:          txn.Amount,
		StartDate:       txn.Date,
		InvestedCapital: txn.Amount,
		Folio:           folio,
		Source:          model.SourceImport,
		CreatedAt:       now,
	}
	if txn.Units > 0 {
		units := txn.Units
		lot.ManualUnits = &units
		lot.Units = units
	}
	return lot
}
