package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/secure"
)

// SchemeBuilder provides a fluent interface for creating test schemes.
//
// Example usage:
//
//	// Fund scheme with defaults
//	scheme := testutil.NewScheme().Build(t, db)
//
//	// Equity scheme
//	scheme := testutil.NewScheme().
//	    WithName("Tata Consultancy Services").
//	    WithTicker("TCS.NS").
//	    Build(t, db)
type SchemeBuilder struct {
	ID       string
	Name     string
	FundID   string
	Ticker   string
	Category string
	ISIN     string
}

// NewScheme creates a SchemeBuilder for a fund scheme with a random fund ID.
func NewScheme() *SchemeBuilder {
	return &SchemeBuilder{
		ID:       MakeID(),
		Name:     MakeSchemeName("Test Equity Fund"),
		FundID:   MakeFundID(),
		Category: "Equity Scheme",
	}
}

// WithID sets a custom ID.
func (b *SchemeBuilder) WithID(id string) *SchemeBuilder {
	b.ID = id
	return b
}

// WithName sets a custom name.
func (b *SchemeBuilder) WithName(name string) *SchemeBuilder {
	b.Name = name
	return b
}

// WithFundID sets the registry fund ID.
func (b *SchemeBuilder) WithFundID(fundID string) *SchemeBuilder {
	b.FundID = fundID
	return b
}

// WithTicker turns the scheme into an equity identified by ticker.
func (b *SchemeBuilder) WithTicker(ticker string) *SchemeBuilder {
	b.Ticker = ticker
	b.FundID = ""
	return b
}

// WithoutFundID removes the registry fund ID.
func (b *SchemeBuilder) WithoutFundID() *SchemeBuilder {
	b.FundID = ""
	return b
}

// WithISIN sets a custom ISIN.
func (b *SchemeBuilder) WithISIN(isin string) *SchemeBuilder {
	b.ISIN = isin
	return b
}

// Build creates the scheme in the database and returns it.
func (b *SchemeBuilder) Build(t *testing.T, db *sql.DB) model.Scheme {
	t.Helper()

	scheme := model.Scheme{
		ID:        b.ID,
		Name:      b.Name,
		FundID:    b.FundID,
		Ticker:    b.Ticker,
		Category:  b.Category,
		ISIN:      b.ISIN,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := repository.NewSchemeRepository(db).InsertScheme(context.Background(), &scheme); err != nil {
		t.Fatalf("Failed to create test scheme: %v", err)
	}

	return scheme
}

// LotBuilder provides a fluent interface for creating test lots.
//
// Example usage:
//
//	lot := testutil.NewLot(scheme.ID).
//	    Recurring(1000).
//	    WithStartDate(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)).
//	    WithStepUp(10).
//	    Build(t, db)
type LotBuilder struct {
	lot model.Lot
}

// NewLot creates a LotBuilder for a manual one-off lot of 10,000.
func NewLot(schemeID string) *LotBuilder {
	return &LotBuilder{lot: model.Lot{
		ID:              MakeID(),
		SchemeID:        schemeID,
		Kind:            model.LotOneOff,
		Amount:          10000,
		StartDate:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		InvestedCapital: 10000,
		Source:          model.SourceManual,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}}
}

// WithAmount sets the contribution amount.
func (b *LotBuilder) WithAmount(amount float64) *LotBuilder {
	b.lot.Amount = amount
	if b.lot.Kind == model.LotOneOff {
		b.lot.InvestedCapital = amount
	}
	return b
}

// Recurring turns the lot into a recurring plan with the given installment.
func (b *LotBuilder) Recurring(installment float64) *LotBuilder {
	b.lot.Kind = model.LotRecurring
	b.lot.Amount = installment
	b.lot.InvestedCapital = 0
	return b
}

// WithStartDate sets the start date.
func (b *LotBuilder) WithStartDate(date time.Time) *LotBuilder {
	b.lot.StartDate = date
	return b
}

// WithStepUp sets the annual step-up percentage.
func (b *LotBuilder) WithStepUp(percent float64) *LotBuilder {
	b.lot.StepUpPercent = &percent
	return b
}

// WithManualUnits pins the unit count.
func (b *LotBuilder) WithManualUnits(units float64) *LotBuilder {
	b.lot.ManualUnits = &units
	b.lot.Units = units
	return b
}

// WithUnits sets the cached computed units.
func (b *LotBuilder) WithUnits(units float64) *LotBuilder {
	b.lot.Units = units
	return b
}

// WithFolio sets the folio number.
func (b *LotBuilder) WithFolio(folio string) *LotBuilder {
	b.lot.Folio = folio
	return b
}

// Imported marks the lot as created by a statement import.
func (b *LotBuilder) Imported() *LotBuilder {
	b.lot.Source = model.SourceImport
	return b
}

// Build creates the lot in the database and returns it.
func (b *LotBuilder) Build(t *testing.T, db *sql.DB) model.Lot {
	t.Helper()

	lot := b.lot
	inserted, err := repository.NewLotRepository(db, secure.NoopCipher{}).InsertLot(context.Background(), &lot)
	if err != nil {
		t.Fatalf("Failed to create test lot: %v", err)
	}
	if !inserted {
		t.Fatalf("Test lot %s was deduplicated on insert", lot.ID)
	}

	return lot
}

// Convenience functions

// CreateFundScheme creates a fund scheme with the given registry fund ID.
//
// Example usage:
//
//	scheme := testutil.CreateFundScheme(t, db, "122639")
func CreateFundScheme(t *testing.T, db *sql.DB, fundID string) model.Scheme {
	t.Helper()
	return NewScheme().WithFundID(fundID).Build(t, db)
}
