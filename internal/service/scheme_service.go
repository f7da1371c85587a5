package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
)

// SchemeService handles scheme-related business logic operations.
type SchemeService struct {
	schemeRepo *repository.SchemeRepository
}

// NewSchemeService creates a new SchemeService with the provided repository dependencies.
func NewSchemeService(schemeRepo *repository.SchemeRepository) *SchemeService {
	return &SchemeService{
		schemeRepo: schemeRepo,
	}
}

// GetSchemes retrieves all schemes sorted by name.
func (s *SchemeService) GetSchemes(ctx context.Context) ([]model.Scheme, error) {
	return s.schemeRepo.GetSchemes(ctx)
}

// CreateScheme stores a new scheme.
// Returns ErrDuplicateEntry when a scheme with the same identity already exists.
// Schemes cannot be changed once created.
func (s *SchemeService) CreateScheme(ctx context.Context, req request.CreateSchemeRequest) (*model.Scheme, error) {
	scheme := &model.Scheme{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		FundID:    strings.TrimSpace(req.FundID),
		Ticker:    model.NormalizeTicker(req.Ticker),
		Category:  strings.TrimSpace(req.Category),
		ISIN:      strings.TrimSpace(req.ISIN),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.schemeRepo.InsertScheme(ctx, scheme); err != nil {
		return nil, fmt.Errorf("failed to create scheme: %w", err)
	}

	return scheme, nil
}
