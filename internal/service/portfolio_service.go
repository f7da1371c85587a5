package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
)

// LiveNavSource supplies the latest NAV per fund. Funds without a price are absent.
type LiveNavSource interface {
	Latest(ctx context.Context, fundIDs []string) map[string]model.LiveNav
}

// QuoteSource supplies live quotes per ticker. Tickers without a price are absent.
type QuoteSource interface {
	GetQuotes(ctx context.Context, tickers []string) map[string]model.Quote
}

// PortfolioService values all lots against live prices.
type PortfolioService struct {
	lotRepo    *repository.LotRepository
	schemeRepo *repository.SchemeRepository
	navs       LiveNavSource
	quotes     QuoteSource
	now        func() time.Time
	logger     *logging.Logger
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
func NewPortfolioService(
	lotRepo *repository.LotRepository,
	schemeRepo *repository.SchemeRepository,
	navs LiveNavSource,
	quotes QuoteSource,
	logger *logging.Logger,
) *PortfolioService {
	return &PortfolioService{
		lotRepo:    lotRepo,
		schemeRepo: schemeRepo,
		navs:       navs,
		quotes:     quotes,
		now:        time.Now,
		logger:     logger,
	}
}

type livePrice struct {
	price    float64
	previous float64
}

// Snapshot values every lot as of now.
//
// Fund schemes are priced with their latest NAV and ticker schemes with a live
// quote; both are fetched concurrently. Pinned units take precedence over computed
// units. A position without a price is valued on cost and flagged as such.
func (s *PortfolioService) Snapshot(ctx context.Context) (model.PortfolioSnapshot, error) {
	lots, err := s.lotRepo.GetLots(ctx)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetSnapshot, err)
	}

	schemeIDs := make([]string, 0, len(lots))
	for _, l := range lots {
		schemeIDs = append(schemeIDs, l.SchemeID)
	}
	schemes, err := s.schemeRepo.GetSchemesByIDs(ctx, schemeIDs)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetSnapshot, err)
	}

	prices := s.loadPrices(ctx, schemes)

	snapshot := model.PortfolioSnapshot{
		Positions: make([]model.Position, 0, len(lots)),
		AsOf:      s.now().UTC().Format(time.RFC3339),
	}
	totalInvested, totalValue, totalDay := decimal.Zero, decimal.Zero, decimal.Zero

	for _, l := range lots {
		scheme := schemes[l.SchemeID]
		pos := valuePosition(l, scheme, prices[l.SchemeID])

		totalInvested = totalInvested.Add(decimal.NewFromFloat(pos.InvestedCapital))
		totalValue = totalValue.Add(decimal.NewFromFloat(pos.CurrentValue))
		totalDay = totalDay.Add(decimal.NewFromFloat(pos.DayChange))
		snapshot.Positions = append(snapshot.Positions, pos)
	}

	snapshot.TotalInvested = totalInvested.Round(2).InexactFloat64()
	snapshot.TotalValue = totalValue.Round(2).InexactFloat64()
	snapshot.TotalDayChange = totalDay.Round(2).InexactFloat64()
	snapshot.TotalGainLoss = totalValue.Sub(totalInvested).Round(2).InexactFloat64()

	return snapshot, nil
}

// loadPrices fetches NAVs and quotes concurrently and keys the result by scheme ID.
func (s *PortfolioService) loadPrices(ctx context.Context, schemes map[string]model.Scheme) map[string]livePrice {
	var fundIDs, tickers []string
	for _, sc := range schemes {
		switch {
		case sc.FundID != "":
			fundIDs = append(fundIDs, sc.FundID)
		case sc.Ticker != "":
			tickers = append(tickers, sc.Ticker)
		}
	}

	var navs map[string]model.LiveNav
	var quotes map[string]model.Quote

	g, gctx := errgroup.WithContext(ctx)
	if len(fundIDs) > 0 {
		g.Go(func() error {
			navs = s.navs.Latest(gctx, fundIDs)
			return nil
		})
	}
	if len(tickers) > 0 {
		g.Go(func() error {
			quotes = s.quotes.GetQuotes(gctx, tickers)
			return nil
		})
	}
	_ = g.Wait()

	prices := make(map[string]livePrice, len(schemes))
	for id, sc := range schemes {
		if sc.FundID != "" {
			if n, ok := navs[sc.FundID]; ok {
				prices[id] = livePrice{price: n.Nav, previous: n.PreviousNav}
			}
			continue
		}
		if q, ok := quotes[model.NormalizeTicker(sc.Ticker)]; ok {
			prices[id] = livePrice{price: q.Price, previous: q.PreviousClose}
		}
	}

	s.logger.Debug().
		Int("funds", len(fundIDs)).
		Int("tickers", len(tickers)).
		Int("priced", len(prices)).
		Msg("snapshot prices loaded")

	return prices
}

func valuePosition(l model.Lot, scheme model.Scheme, price livePrice) model.Position {
	units := decimal.NewFromFloat(l.EffectiveUnits())
	invested := decimal.NewFromFloat(l.InvestedCapital)

	pos := model.Position{
		LotID:           l.ID,
		SchemeID:        l.SchemeID,
		SchemeName:      scheme.Name,
		Kind:            l.Kind,
		Units:           l.EffectiveUnits(),
		InvestedCapital: invested.Round(2).InexactFloat64(),
	}

	value := invested
	if price.price > 0 && units.IsPositive() {
		p := decimal.NewFromFloat(price.price)
		prev := decimal.NewFromFloat(price.previous)
		value = units.Mul(p)
		pos.Price = price.price
		pos.PreviousPrice = price.previous
		pos.DayChange = units.Mul(p.Sub(prev)).Round(2).InexactFloat64()
		pos.PriceAvailable = true
	}

	pos.CurrentValue = value.Round(2).InexactFloat64()
	pos.GainLoss = value.Sub(invested).Round(2).InexactFloat64()
	return pos
}
