package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/secure"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
)

// monthlyNav returns a NAV point on the first of every month in [from, to] at a flat price.
func monthlyNav(from, to time.Time, price float64) []model.NavPoint {
	var points []model.NavPoint
	for d := from; !d.After(to); d = d.AddDate(0, 1, 0) {
		points = append(points, model.NavPoint{Date: d, Price: price})
	}
	return points
}

func getLot(t *testing.T, db *sql.DB, id string) model.Lot {
	t.Helper()
	lot, err := repository.NewLotRepository(db, secure.NoopCipher{}).GetLot(context.Background(), id)
	require.NoError(t, err)
	return lot
}

// TestSyncService_SyncLot tests valuation write-back for a single lot.
func TestSyncService_SyncLot(t *testing.T) {
	ctx := context.Background()

	t.Run("one-off lot buys at start date NAV", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "122639")
		lot := testutil.NewLot(scheme.ID).WithAmount(10000).WithStartDate(day(2024, 1, 15)).Build(t, db)
		client := testutil.NewMockNavClient().WithSeries("122639",
			testutil.Nav(2024, 1, 12, 48),
			testutil.Nav(2024, 1, 15, 50),
			testutil.Nav(2024, 1, 16, 51),
		)
		svc := testutil.NewTestSyncService(t, db, client)

		// Execute
		outcome, err := svc.SyncLot(ctx, lot.ID)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSynced, outcome.Status)
		assert.Equal(t, 200.0, outcome.Units)
		assert.Equal(t, 10000.0, outcome.InvestedCapital)

		stored := getLot(t, db, lot.ID)
		assert.Equal(t, 200.0, stored.Units)
		require.NotNil(t, stored.LastSyncedAt)
		assert.True(t, stored.LastSyncedAt.Equal(testutil.FixedNow))
	})

	t.Run("start date on a holiday uses next available NAV", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "100")
		lot := testutil.NewLot(scheme.ID).WithAmount(1000).WithStartDate(day(2024, 1, 13)).Build(t, db)
		client := testutil.NewMockNavClient().WithSeries("100",
			testutil.Nav(2024, 1, 12, 10),
			testutil.Nav(2024, 1, 15, 20),
		)
		svc := testutil.NewTestSyncService(t, db, client)

		outcome, err := svc.SyncLot(ctx, lot.ID)

		require.NoError(t, err)
		assert.Equal(t, 50.0, outcome.Units)
	})

	t.Run("recurring lot steps up every twelve instalments", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "200")
		lot := testutil.NewLot(scheme.ID).
			Recurring(1000).
			WithStartDate(day(2023, 1, 1)).
			WithStepUp(10).
			Build(t, db)
		client := testutil.NewMockNavClient().WithSeries("200", monthlyNav(day(2023, 1, 1), day(2024, 2, 1), 10)...)
		svc := testutil.NewTestSyncService(t, db, client)

		// Execute
		outcome, err := svc.SyncLot(ctx, lot.ID)

		// Assert: 12 x 1000 + 2 x 1100, all at NAV 10
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSynced, outcome.Status)
		assert.Equal(t, 14200.0, outcome.InvestedCapital)
		assert.Equal(t, 1420.0, outcome.Units)
	})

	t.Run("pinned lot is skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "300")
		lot := testutil.NewLot(scheme.ID).WithManualUnits(42).Build(t, db)
		client := testutil.NewMockNavClient().WithSeries("300", testutil.Nav(2024, 1, 15, 50))
		svc := testutil.NewTestSyncService(t, db, client)

		outcome, err := svc.SyncLot(ctx, lot.ID)

		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSkipped, outcome.Status)
		assert.Equal(t, 42.0, outcome.Units)
		assert.Equal(t, 0, client.Calls("300"), "pinned lots must not trigger a NAV fetch")
	})

	t.Run("one-off lot without fund ID is skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.NewScheme().WithTicker("INFY.NS").Build(t, db)
		lot := testutil.NewLot(scheme.ID).Build(t, db)
		svc := testutil.NewTestSyncService(t, db, testutil.NewMockNavClient())

		outcome, err := svc.SyncLot(ctx, lot.ID)

		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSkipped, outcome.Status)
		assert.Contains(t, outcome.Reason, "fund ID")
	})

	t.Run("recurring lot without fund ID is valued on cost", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.NewScheme().WithoutFundID().Build(t, db)
		lot := testutil.NewLot(scheme.ID).Recurring(500).WithStartDate(day(2023, 12, 1)).Build(t, db)
		svc := testutil.NewTestSyncService(t, db, testutil.NewMockNavClient())

		outcome, err := svc.SyncLot(ctx, lot.ID)

		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSynced, outcome.Status)
		assert.Equal(t, 0.0, outcome.Units)
		assert.Equal(t, 1500.0, outcome.InvestedCapital)
	})

	t.Run("fund without history is synced on cost", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "404")
		lot := testutil.NewLot(scheme.ID).WithAmount(2500).Build(t, db)
		svc := testutil.NewTestSyncService(t, db, testutil.NewMockNavClient())

		outcome, err := svc.SyncLot(ctx, lot.ID)

		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSynced, outcome.Status)
		assert.Equal(t, 0.0, outcome.Units)
		assert.Equal(t, 2500.0, outcome.InvestedCapital)
	})

	// WHY: A slow upstream must not overwrite a good cached valuation with a
	// cost-only one. The lot keeps its previous values until the next cycle.
	t.Run("upstream timeout fails without writing", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "500")
		lot := testutil.NewLot(scheme.ID).WithUnits(123.4567).Build(t, db)
		client := testutil.NewMockNavClient().
			WithSeries("500", testutil.Nav(2024, 1, 15, 50)).
			WithDelay(time.Second)
		svc := testutil.NewTestSyncServiceWithTimeout(t, db, client, 20*time.Millisecond)

		// Execute
		outcome, err := svc.SyncLot(ctx, lot.ID)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusFailed, outcome.Status)
		assert.Contains(t, outcome.Reason, apperrors.ErrUpstreamTimeout.Error())

		stored := getLot(t, db, lot.ID)
		assert.Equal(t, 123.4567, stored.Units)
		assert.Nil(t, stored.LastSyncedAt)
	})

	t.Run("unknown lot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSyncService(t, db, testutil.NewMockNavClient())

		_, err := svc.SyncLot(ctx, testutil.MakeID())

		assert.ErrorIs(t, err, apperrors.ErrLotNotFound)
	})
}

// TestSyncService_SyncAll tests batch synchronisation.
//
// WHY: One broken fund must never stop the rest of the portfolio from syncing.
func TestSyncService_SyncAll(t *testing.T) {
	t.Run("mixed outcomes in lot order", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		good := testutil.CreateFundScheme(t, db, "111")
		broken := testutil.CreateFundScheme(t, db, "222")
		first := testutil.NewLot(good.ID).WithAmount(1000).WithStartDate(day(2024, 1, 2)).Build(t, db)
		second := testutil.NewLot(broken.ID).WithStartDate(day(2024, 1, 3)).Build(t, db)
		third := testutil.NewLot(good.ID).WithManualUnits(5).WithStartDate(day(2024, 1, 4)).Build(t, db)

		client := testutil.NewMockNavClient().
			WithSeries("111", testutil.Nav(2024, 1, 2, 10)).
			WithError("222", assert.AnError)
		svc := testutil.NewTestSyncService(t, db, client)

		// Execute
		outcomes, err := svc.SyncAll(context.Background())

		// Assert
		require.NoError(t, err)
		require.Len(t, outcomes, 3)
		assert.Equal(t, first.ID, outcomes[0].LotID)
		assert.Equal(t, model.SyncStatusSynced, outcomes[0].Status)
		assert.Equal(t, 100.0, outcomes[0].Units)
		assert.Equal(t, second.ID, outcomes[1].LotID)
		assert.Equal(t, model.SyncStatusFailed, outcomes[1].Status)
		assert.Equal(t, third.ID, outcomes[2].LotID)
		assert.Equal(t, model.SyncStatusSkipped, outcomes[2].Status)
		assert.Equal(t, 1, client.Calls("111"), "lots of one fund share a fetch")
	})

	t.Run("empty portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSyncService(t, db, testutil.NewMockNavClient())

		outcomes, err := svc.SyncAll(context.Background())

		require.NoError(t, err)
		assert.Empty(t, outcomes)
	})
}

func TestCountOutcomes(t *testing.T) {
	counts := service.CountOutcomes([]model.SyncOutcome{
		{Status: model.SyncStatusSynced},
		{Status: model.SyncStatusSynced},
		{Status: model.SyncStatusFailed},
	})

	assert.Equal(t, 2, counts[model.SyncStatusSynced])
	assert.Equal(t, 1, counts[model.SyncStatusFailed])
	assert.Equal(t, 0, counts[model.SyncStatusSkipped])
}
