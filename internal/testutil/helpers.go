package testutil

import (
	"database/sql"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/mfapi"
	"github.com/ndewijer/portfolio-sync/internal/navhistory"
	"github.com/ndewijer/portfolio-sync/internal/quote"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/secure"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/statement"
	"github.com/ndewijer/portfolio-sync/internal/valuation"
)

// FixedNow is the instant used by services created through these helpers.
var FixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func NewTestImportService(t *testing.T, db *sql.DB) *service.ImportService {
	t.Helper()

	return service.NewImportService(
		db,
		statement.NewParser(),
		repository.NewSchemeRepository(db),
		repository.NewLotRepository(db, secure.NoopCipher{}),
		logging.NewSilentLogger(),
	)
}

func NewTestSchemeService(t *testing.T, db *sql.DB) *service.SchemeService {
	t.Helper()

	return service.NewSchemeService(repository.NewSchemeRepository(db))
}

// NewTestSyncService creates a SyncService valuing as of FixedNow with the
// anniversary policy, fed by the given mock NAV client.
func NewTestSyncService(t *testing.T, db *sql.DB, client mfapi.Client) *service.SyncService {
	t.Helper()
	return NewTestSyncServiceWithTimeout(t, db, client, 10*time.Second)
}

// NewTestSyncServiceWithTimeout is NewTestSyncService with a custom upstream timeout.
func NewTestSyncServiceWithTimeout(t *testing.T, db *sql.DB, client mfapi.Client, timeout time.Duration) *service.SyncService {
	t.Helper()

	navRepo := navhistory.New(client,
		navhistory.WithStore(repository.NewNavRepository(db)),
		navhistory.WithTimeout(timeout),
	)
	engine := valuation.NewEngine(valuation.PolicyAnniversary, valuation.WithClock(func() time.Time { return FixedNow }))

	return service.NewSyncService(
		repository.NewLotRepository(db, secure.NoopCipher{}),
		repository.NewSchemeRepository(db),
		navRepo,
		engine,
		2,
		logging.NewSilentLogger(),
	)
}

func NewTestLotService(t *testing.T, db *sql.DB, client mfapi.Client) *service.LotService {
	t.Helper()

	return service.NewLotService(
		repository.NewLotRepository(db, secure.NoopCipher{}),
		repository.NewSchemeRepository(db),
		NewTestSyncService(t, db, client),
		logging.NewSilentLogger(),
	)
}

func NewTestPortfolioService(t *testing.T, db *sql.DB, client mfapi.Client, fetcher quote.Fetcher) *service.PortfolioService {
	t.Helper()

	return service.NewPortfolioService(
		repository.NewLotRepository(db, secure.NoopCipher{}),
		repository.NewSchemeRepository(db),
		navhistory.New(client),
		quote.NewCache(fetcher),
		logging.NewSilentLogger(),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db, map[string]bool{"statement_import": true})
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeFundID generates a numeric registry fund ID for testing.
//
// Example usage:
//
//	fundID := testutil.MakeFundID()
//	// Returns: "148213"
func MakeFundID() string {
	//nolint:gosec // G404: Using math/rand for test data generation is acceptable
	return fmt.Sprintf("%d", 100000+rand.Intn(900000))
}

// MakeSchemeName generates a unique scheme name for testing.
//
// Example usage:
//
//	name := testutil.MakeSchemeName("Flexi Cap Fund")
//	// Returns: "Flexi Cap Fund XYZ789"
func MakeSchemeName(base string) string {
	if base == "" {
		base = "Scheme"
	}
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
